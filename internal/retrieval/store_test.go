package retrieval

import (
	"testing"
	"time"

	"github.com/fooodis/chatd/internal/storage"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSQLiteStore(s.DB())
}

func rec(id, memType, convID string, embedding ...float32) Record {
	return Record{
		ID:             id,
		Type:           memType,
		ConversationID: convID,
		TextChunk:      "chunk for " + id,
		Embedding:      embedding,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestInsertAndSearchOrdersByCosine(t *testing.T) {
	vs := openTestStore(t)

	// Orthogonal and diagonal vectors give predictable cosine scores
	// against the query (1, 0): 1.0, ~0.707, 0.
	err := vs.Insert([]Record{
		rec("same", "faq", "", 1, 0),
		rec("diag", "faq", "", 1, 1),
		rec("orth", "faq", "", 0, 1),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := vs.Search([]float32{1, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].ID != "same" || results[1].ID != "diag" || results[2].ID != "orth" {
		t.Errorf("order = %s, %s, %s", results[0].ID, results[1].ID, results[2].ID)
	}
	if results[0].Score < 0.999 {
		t.Errorf("identical vector score = %v", results[0].Score)
	}
	if results[0].TextChunk != "chunk for same" {
		t.Errorf("chunk = %q", results[0].TextChunk)
	}
}

func TestSearchTopK(t *testing.T) {
	vs := openTestStore(t)

	err := vs.Insert([]Record{
		rec("a", "faq", "", 1, 0),
		rec("b", "faq", "", 0.9, 0.1),
		rec("c", "faq", "", 0, 1),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := vs.Search([]float32{1, 0}, 2, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("top-2 = %s, %s", results[0].ID, results[1].ID)
	}
}

func TestSearchFilters(t *testing.T) {
	vs := openTestStore(t)

	err := vs.Insert([]Record{
		rec("faq-1", "faq", "conv-1", 1, 0),
		rec("pref-1", "user_preference", "conv-1", 1, 0),
		rec("faq-2", "faq", "conv-2", 1, 0),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := vs.Search([]float32{1, 0}, 10, Filter{Type: "faq"})
	if err != nil {
		t.Fatalf("Search by type: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("type filter results = %d, want 2", len(results))
	}

	results, err = vs.Search([]float32{1, 0}, 10, Filter{Type: "faq", ConversationID: "conv-2"})
	if err != nil {
		t.Fatalf("Search by type+conversation: %v", err)
	}
	if len(results) != 1 || results[0].ID != "faq-2" {
		t.Errorf("combined filter results = %+v", results)
	}
}

func TestSearchZeroQueryVector(t *testing.T) {
	vs := openTestStore(t)

	if err := vs.Insert([]Record{rec("a", "faq", "", 1, 0)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	results, err := vs.Search([]float32{0, 0}, 5, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Errorf("zero-norm query should return nil, got %+v", results)
	}
}

func TestInsertUpsertsByID(t *testing.T) {
	vs := openTestStore(t)

	if err := vs.Insert([]Record{rec("m1", "faq", "", 1, 0)}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	updated := rec("m1", "knowledge", "conv-9", 0, 1)
	if err := vs.Insert([]Record{updated}); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	count, err := vs.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 after upsert", count)
	}

	results, err := vs.Search([]float32{0, 1}, 1, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Type != "knowledge" || results[0].ConversationID != "conv-9" {
		t.Errorf("upserted record = %+v", results)
	}
}

func TestDeleteAndDeleteByConversation(t *testing.T) {
	vs := openTestStore(t)

	err := vs.Insert([]Record{
		rec("a", "faq", "conv-1", 1, 0),
		rec("b", "faq", "conv-1", 0, 1),
		rec("c", "faq", "conv-2", 1, 1),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := vs.Delete("c"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := vs.Delete("c"); err == nil {
		t.Error("deleting a missing record should error")
	}

	n, err := vs.DeleteByConversation("conv-1")
	if err != nil {
		t.Fatalf("DeleteByConversation: %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}

	count, err := vs.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestFloat32CodecRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.1415927, -2.5e6}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
