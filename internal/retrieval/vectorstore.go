// Package retrieval provides vector storage and similarity search for the
// semantic memory layer.
package retrieval

import "time"

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity; an ANN-capable backend can replace it behind this interface.
type VectorStore interface {
	// Insert adds records to the index. A record's ID is the memory id it
	// mirrors, so re-inserting the same id after Delete is idempotent.
	Insert(records []Record) error

	// Search returns the top-K records most similar to the query vector,
	// restricted by the filter.
	Search(vector []float32, topK int, filter Filter) ([]ScoredRecord, error)

	// Delete removes a record by id.
	Delete(id string) error

	// DeleteByConversation removes all records for a conversation and
	// returns how many were removed.
	DeleteByConversation(conversationID string) (int, error)

	// Count returns the number of indexed records.
	Count() (int, error)
}

// Filter restricts a similarity search. Empty fields match everything.
type Filter struct {
	Type           string
	ConversationID string
}

// Record is one indexed memory. TextChunk is a truncated preview only; the
// memories table keeps the authoritative full content.
type Record struct {
	ID             string
	Type           string
	ConversationID string
	TextChunk      string
	Embedding      []float32
	CreatedAt      time.Time
}

// ScoredRecord is a Record with a cosine similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
