package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/fooodis/chatd/internal/storage"
)

type fakeJobStore struct {
	next      *storage.Job
	completed []string
	failed    []string
	failMsgs  []string
	claimErr  error
}

func (s *fakeJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	job := s.next
	s.next = nil
	return job, nil
}

func (s *fakeJobStore) CompleteJob(id string) error {
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeJobStore) FailJob(id, errMsg string) error {
	s.failed = append(s.failed, id)
	s.failMsgs = append(s.failMsgs, errMsg)
	return nil
}

type fakeReconciler struct {
	calls []string
	err   error
}

func (r *fakeReconciler) ReconcileVector(ctx context.Context, memoryID string) error {
	r.calls = append(r.calls, memoryID)
	return r.err
}

func TestRunOnceNoJob(t *testing.T) {
	w := New(&fakeJobStore{}, &fakeReconciler{}, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("no pending job should report done=false")
	}
}

func TestRunOnceCompletesJob(t *testing.T) {
	store := &fakeJobStore{next: &storage.Job{ID: "j1", PayloadJSON: `{"memory_id":"m1"}`}}
	rec := &fakeReconciler{}
	w := New(store, rec, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Error("done = false, want true")
	}
	if len(rec.calls) != 1 || rec.calls[0] != "m1" {
		t.Errorf("reconcile calls = %v", rec.calls)
	}
	if len(store.completed) != 1 || store.completed[0] != "j1" {
		t.Errorf("completed = %v", store.completed)
	}
	if len(store.failed) != 0 {
		t.Errorf("failed = %v", store.failed)
	}
}

func TestRunOnceFailsJobOnReconcileError(t *testing.T) {
	store := &fakeJobStore{next: &storage.Job{ID: "j1", PayloadJSON: `{"memory_id":"m1"}`}}
	rec := &fakeReconciler{err: errors.New("index unavailable")}
	w := New(store, rec, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce should absorb job errors: %v", err)
	}
	if !done {
		t.Error("done = false, want true")
	}
	if len(store.failed) != 1 || store.failed[0] != "j1" {
		t.Errorf("failed = %v", store.failed)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v", store.completed)
	}
}

func TestRunOnceFailsJobOnBadPayload(t *testing.T) {
	cases := []string{"not json", `{}`}
	for _, payload := range cases {
		store := &fakeJobStore{next: &storage.Job{ID: "j1", PayloadJSON: payload}}
		rec := &fakeReconciler{}
		w := New(store, rec, 0)

		if _, err := w.RunOnce(context.Background()); err != nil {
			t.Fatalf("payload %q: %v", payload, err)
		}
		if len(store.failed) != 1 {
			t.Errorf("payload %q: failed = %v", payload, store.failed)
		}
		if len(rec.calls) != 0 {
			t.Errorf("payload %q: reconciler called with %v", payload, rec.calls)
		}
	}
}

func TestRunOnceClaimError(t *testing.T) {
	store := &fakeJobStore{claimErr: errors.New("db locked")}
	w := New(store, &fakeReconciler{}, 0)

	done, err := w.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected claim error to surface")
	}
	if done {
		t.Error("done = true, want false")
	}
}
