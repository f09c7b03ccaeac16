package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Flow is one stored conversation graph. Nodes and connections are kept as
// raw JSON text; the flow package decodes them into typed structures.
type Flow struct {
	ID              string
	Language        string
	NodesJSON       string
	ConnectionsJSON string
	IsActive        bool
	UpdatedAt       time.Time
}

type Conversation struct {
	ID             string
	VisitorID      string
	UserID         string
	ThreadID       string
	UserName       string
	UserEmail      string
	UserPhone      string
	RestaurantName string
	UserType       string
	Language       string
	LanguageFlag   string
	Status         string // "active", "closed", "handoff"
	IsRegistered   bool
	Rating         int
	RatingFeedback string
	MessageCount   int
	FirstMessageAt time.Time
	LastMessageAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConversationPatch carries partial conversation fields for upsert.
// Nil pointer fields are left untouched on update.
type ConversationPatch struct {
	ID             string
	VisitorID      *string
	UserID         *string
	ThreadID       *string
	UserName       *string
	UserEmail      *string
	UserPhone      *string
	RestaurantName *string
	UserType       *string
	Language       *string
	Status         *string
	IsRegistered   *bool
	Rating         *int
	RatingFeedback *string
}

type Message struct {
	ID             string
	ConversationID string
	Sender         string // "visitor", "bot", "agent"
	Content        string
	NodeID         string
	CreatedAt      time.Time
}

type Lead struct {
	ID                 string
	VisitorID          string
	Email              string
	Name               string
	Phone              string
	RestaurantName     string
	UserType           string
	Language           string
	Status             string // "lead", "qualified", "customer"
	TotalConversations int
	TotalMessages      int
	CustomFields       string // JSON object stored as text
	Tags               string // JSON array stored as text
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LeadStats aggregates lead counts by status for the admin dashboard.
type LeadStats struct {
	Total     int
	Leads     int
	Qualified int
	Customers int
}

type Agent struct {
	ID          string
	Name        string
	Avatar      string
	Department  string
	AssistantID string
	CreatedAt   time.Time
}

type Memory struct {
	ID             string
	ConversationID string
	Content        string
	Type           string // "user_preference", "faq", "conversation", "knowledge"
	Metadata       string // JSON object stored as text
	CreatedAt      time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
