package storage

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateConversationDefaults(t *testing.T) {
	s := openTestStore(t)

	c, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-123")})
	if err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	if c.ID == "" {
		t.Error("expected generated id")
	}
	if c.Language != "en" {
		t.Errorf("language = %q, want en", c.Language)
	}
	if c.LanguageFlag != "\U0001F1EC\U0001F1E7" {
		t.Errorf("language flag = %q, want GB flag", c.LanguageFlag)
	}
	if c.Status != "active" {
		t.Errorf("status = %q, want active", c.Status)
	}
	if c.IsRegistered {
		t.Error("new conversation should not be registered")
	}
}

func TestCreateConversationSwedishFlag(t *testing.T) {
	s := openTestStore(t)

	c, err := s.UpsertConversation(ConversationPatch{Language: strPtr("sv")})
	if err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}
	if c.LanguageFlag != "\U0001F1F8\U0001F1EA" {
		t.Errorf("language flag = %q, want SE flag", c.LanguageFlag)
	}
}

// TestPatchConversationPartial verifies a patch touches only supplied fields.
func TestPatchConversationPartial(t *testing.T) {
	s := openTestStore(t)

	created, err := s.UpsertConversation(ConversationPatch{
		VisitorID: strPtr("v-1"),
		UserName:  strPtr("Anna"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	patched, err := s.UpsertConversation(ConversationPatch{
		ID:     created.ID,
		Status: strPtr("closed"),
		Rating: intPtr(5),
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	if patched.Status != "closed" {
		t.Errorf("status = %q, want closed", patched.Status)
	}
	if patched.Rating != 5 {
		t.Errorf("rating = %d, want 5", patched.Rating)
	}
	if patched.UserName != "Anna" {
		t.Errorf("user name changed by unrelated patch: %q", patched.UserName)
	}
	if patched.VisitorID != "v-1" {
		t.Errorf("visitor id changed by unrelated patch: %q", patched.VisitorID)
	}
}

func TestPatchUnknownConversation(t *testing.T) {
	s := openTestStore(t)

	_, err := s.UpsertConversation(ConversationPatch{ID: "nope", Status: strPtr("closed")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("patching unknown conversation: got %v, want ErrNotFound", err)
	}
}

func TestAppendMessageBumpsCounters(t *testing.T) {
	s := openTestStore(t)

	conv, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-2")})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	for _, content := range []string{"hello", "what's on the menu?"} {
		if _, err := s.AppendMessage(Message{
			ConversationID: conv.ID,
			Sender:         "visitor",
			Content:        content,
		}); err != nil {
			t.Fatalf("AppendMessage(%q): %v", content, err)
		}
	}

	got, err := s.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount)
	}
	if got.FirstMessageAt.IsZero() || got.LastMessageAt.IsZero() {
		t.Error("first/last message timestamps not set")
	}
	if got.LastMessageAt.Before(got.FirstMessageAt) {
		t.Error("last message timestamp before first")
	}

	messages, err := s.ListMessages(conv.ID, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Content != "hello" {
		t.Errorf("messages out of order: first = %q", messages[0].Content)
	}
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := openTestStore(t)

	_, err := s.AppendMessage(Message{ConversationID: "missing", Sender: "visitor", Content: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	// The message insert must have been rolled back with the counter update.
	messages, err := s.ListMessages("missing", 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("orphan message stored for unknown conversation: %d", len(messages))
	}
}

func TestActiveConversationByVisitor(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.ActiveConversationByVisitor("v-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: got %v, want ErrNotFound", err)
	}

	closed := "closed"
	if _, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-9"), Status: &closed}); err != nil {
		t.Fatalf("create closed: %v", err)
	}
	active, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-9")})
	if err != nil {
		t.Fatalf("create active: %v", err)
	}

	got, err := s.ActiveConversationByVisitor("v-9")
	if err != nil {
		t.Fatalf("ActiveConversationByVisitor: %v", err)
	}
	if got.ID != active.ID {
		t.Errorf("got conversation %q, want active %q", got.ID, active.ID)
	}
}

func TestListConversationsFilters(t *testing.T) {
	s := openTestStore(t)

	handoff := "handoff"
	if _, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("b"), Status: &handoff}); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListConversations("", "", 10, 0)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d conversations, want 2", len(all))
	}

	only, err := s.ListConversations("handoff", "", 10, 0)
	if err != nil {
		t.Fatalf("ListConversations(handoff): %v", err)
	}
	if len(only) != 1 || only[0].Status != "handoff" {
		t.Errorf("status filter failed: %+v", only)
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	s := openTestStore(t)

	conv, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-del")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(Message{ConversationID: conv.ID, Sender: "bot", Content: "bye"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteConversation(conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	if _, err := s.GetConversation(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("conversation still present: %v", err)
	}
	messages, err := s.ListMessages(conv.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 0 {
		t.Errorf("messages not deleted with conversation: %d left", len(messages))
	}

	if err := s.DeleteConversation(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}
