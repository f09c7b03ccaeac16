package storage

import (
	"errors"
	"testing"
)

func TestUpsertLeadRequiresKey(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.UpsertLead(LeadInput{Name: "Nobody"})
	if !errors.Is(err, ErrNoLeadKey) {
		t.Errorf("got %v, want ErrNoLeadKey", err)
	}
}

// TestUpsertLeadIdempotent registers the same email twice and verifies a
// single record comes out the other end.
func TestUpsertLeadIdempotent(t *testing.T) {
	s := openTestStore(t)

	first, created, err := s.UpsertLead(LeadInput{Email: "a@b.com", Name: "X"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Error("first upsert should create")
	}

	second, created, err := s.UpsertLead(LeadInput{Email: "a@b.com", Name: "X"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("second upsert should update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("second upsert made a new record: %q vs %q", second.ID, first.ID)
	}
	if second.Name != "X" {
		t.Errorf("name = %q, want X", second.Name)
	}

	leads, err := s.ListLeads("", "", 10, 0)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(leads) != 1 {
		t.Errorf("got %d leads, want 1", len(leads))
	}
}

func TestUpsertLeadNormalizesEmail(t *testing.T) {
	s := openTestStore(t)

	first, _, err := s.UpsertLead(LeadInput{Email: "Chef@Fooodis.COM "})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Email != "chef@fooodis.com" {
		t.Errorf("stored email = %q, want normalized", first.Email)
	}

	second, created, err := s.UpsertLead(LeadInput{Email: " chef@fooodis.com"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created || second.ID != first.ID {
		t.Error("differently cased email created a second lead")
	}
}

func TestUpsertLeadByVisitorID(t *testing.T) {
	s := openTestStore(t)

	first, created, err := s.UpsertLead(LeadInput{VisitorID: "v-42"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Error("expected create")
	}
	if first.Status != "lead" {
		t.Errorf("default status = %q, want lead", first.Status)
	}

	// Visitor later supplies an email: same record gains the email.
	second, created, err := s.UpsertLead(LeadInput{VisitorID: "v-42", Email: "v42@b.com"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("email on known visitor should update, not create")
	}
	if second.ID != first.ID || second.Email != "v42@b.com" {
		t.Errorf("visitor dedup failed: %+v", second)
	}

	got, err := s.GetLeadByVisitor("v-42")
	if err != nil {
		t.Fatalf("GetLeadByVisitor: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("lookup by visitor returned %q, want %q", got.ID, first.ID)
	}
}

// TestLeadLinksConversations covers registration retro-linking: an anonymous
// conversation with a matching visitor id picks up the user id and the
// registered flag, and the display fields are copied over.
func TestLeadLinksConversations(t *testing.T) {
	s := openTestStore(t)

	conv, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-7")})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := s.AppendMessage(Message{ConversationID: conv.ID, Sender: "visitor", Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	lead, _, err := s.UpsertLead(LeadInput{
		VisitorID:      "v-7",
		Email:          "owner@rest.se",
		Name:           "Erik",
		RestaurantName: "Kök 7",
	})
	if err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}

	linked, err := s.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if linked.UserID != lead.ID {
		t.Errorf("conversation user id = %q, want %q", linked.UserID, lead.ID)
	}
	if !linked.IsRegistered {
		t.Error("conversation not marked registered")
	}
	if linked.UserName != "Erik" || linked.UserEmail != "owner@rest.se" || linked.RestaurantName != "Kök 7" {
		t.Errorf("display fields not copied: %+v", linked)
	}

	// Totals reflect the linked conversation.
	if lead.TotalConversations != 1 {
		t.Errorf("total conversations = %d, want 1", lead.TotalConversations)
	}
	if lead.TotalMessages != 1 {
		t.Errorf("total messages = %d, want 1", lead.TotalMessages)
	}

	// No duplicate conversation was created by linking.
	all, err := s.ListConversations("", "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("got %d conversations after linking, want 1", len(all))
	}
}

func TestLeadLinkDoesNotStealOwnedConversations(t *testing.T) {
	s := openTestStore(t)

	owned, err := s.UpsertConversation(ConversationPatch{VisitorID: strPtr("v-8"), UserID: strPtr("someone-else")})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.UpsertLead(LeadInput{VisitorID: "v-8", Email: "new@b.com"}); err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}

	got, err := s.GetConversation(owned.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "someone-else" {
		t.Errorf("linking overwrote an owned conversation: user id = %q", got.UserID)
	}
}

func TestListLeadsSearch(t *testing.T) {
	s := openTestStore(t)

	if _, _, err := s.UpsertLead(LeadInput{Email: "anna@kok.se", Name: "Anna", RestaurantName: "Köket"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertLead(LeadInput{Email: "bob@diner.com", Name: "Bob", RestaurantName: "Diner"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.ListLeads("anna", "", 10, 0)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "Anna" {
		t.Errorf("search failed: %+v", hits)
	}
}

func TestLeadStats(t *testing.T) {
	s := openTestStore(t)

	if _, _, err := s.UpsertLead(LeadInput{Email: "l1@x.com"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertLead(LeadInput{Email: "l2@x.com", Status: "qualified"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertLead(LeadInput{Email: "l3@x.com", Status: "customer"}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetLeadStats()
	if err != nil {
		t.Fatalf("GetLeadStats: %v", err)
	}
	if stats.Total != 3 || stats.Leads != 1 || stats.Qualified != 1 || stats.Customers != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
