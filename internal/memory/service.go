// Package memory implements the semantic memory layer: free-text snippets
// embedded into a vector index with a full-content relational mirror.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fooodis/chatd/internal/retrieval"
	"github.com/fooodis/chatd/internal/storage"
)

var (
	// ErrEmptyContent is returned when a memory has no content to store.
	ErrEmptyContent = errors.New("memory content is required")
	// ErrInvalidType is returned for memory types outside the known set.
	ErrInvalidType = errors.New("invalid memory type")
	// ErrBulkClearNotAllowed guards the "forget everything" path, which
	// requires elevated authorization that is not implemented.
	ErrBulkClearNotAllowed = errors.New("bulk memory clear requires admin authorization")
)

// JobVectorReconcile re-inserts a memory's vector row after a failed write.
const JobVectorReconcile = "vector_reconcile"

// chunkLimit bounds the preview text stored next to each vector. The
// memories table keeps the full content.
const chunkLimit = 200

var validTypes = map[string]bool{
	"user_preference": true,
	"faq":             true,
	"conversation":    true,
	"knowledge":       true,
}

// Store is the relational side of the memory layer.
type Store interface {
	SaveMemory(m storage.Memory) error
	GetMemory(id string) (storage.Memory, error)
	GetMemories(ids []string) ([]storage.Memory, error)
	DeleteMemory(id string) error
	DeleteMemoriesByConversation(conversationID string) ([]string, error)
	EnqueueJob(job storage.Job) error
}

// Result is one recalled memory, enriched with full content from the
// relational mirror.
type Result struct {
	ID             string  `json:"id"`
	Score          float32 `json:"score"`
	Content        string  `json:"content"`
	Type           string  `json:"type"`
	ConversationID string  `json:"conversationId,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

// Service coordinates the dual write to the vector index and the relational
// mirror. The relational row is authoritative; a failed vector write is
// queued for reconciliation instead of diverging silently.
type Service struct {
	store    Store
	vectors  retrieval.VectorStore
	embedder *retrieval.Embedder
	logger   *slog.Logger
}

// NewService creates a memory Service.
func NewService(store Store, vectors retrieval.VectorStore, embedder *retrieval.Embedder) *Service {
	return &Service{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// Remember embeds content and stores it in both the relational mirror and
// the vector index, returning the new memory id. The embedding happens
// first: with no embedding provider configured the call fails outright
// rather than storing un-embedded text.
func (s *Service) Remember(ctx context.Context, content, memType, conversationID string, metadata map[string]any) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}
	if memType == "" {
		memType = "knowledge"
	}
	if !validTypes[memType] {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, memType)
	}

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embedding memory: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	metadataJSON := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("encoding metadata: %w", err)
		}
		metadataJSON = string(b)
	}

	if err := s.store.SaveMemory(storage.Memory{
		ID:             id,
		ConversationID: conversationID,
		Content:        content,
		Type:           memType,
		Metadata:       metadataJSON,
		CreatedAt:      now,
	}); err != nil {
		return "", fmt.Errorf("saving memory: %w", err)
	}

	record := retrieval.Record{
		ID:             id,
		Type:           memType,
		ConversationID: conversationID,
		TextChunk:      truncate(content, chunkLimit),
		Embedding:      vec,
		CreatedAt:      now,
	}
	if err := s.vectors.Insert([]retrieval.Record{record}); err != nil {
		s.logger.Warn("vector insert failed, queuing reconciliation", "memory_id", id, "error", err)
		s.enqueueReconcile(id)
	}

	return id, nil
}

// Recall returns the memories most similar to the query, optionally
// restricted by type and conversation. Content comes from the relational
// mirror, not the truncated vector preview.
func (s *Service) Recall(ctx context.Context, query, memType, conversationID string, limit int) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyContent
	}
	if memType != "" && !validTypes[memType] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, memType)
	}
	if limit <= 0 {
		limit = 5
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := s.vectors.Search(vec, limit, retrieval.Filter{
		Type:           memType,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	ids := make([]string, len(scored))
	for i, r := range scored {
		ids[i] = r.ID
	}
	rows, err := s.store.GetMemories(ids)
	if err != nil {
		return nil, fmt.Errorf("loading memory rows: %w", err)
	}
	byID := make(map[string]storage.Memory, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}

	results := make([]Result, 0, len(scored))
	for _, r := range scored {
		res := Result{
			ID:             r.ID,
			Score:          r.Score,
			Content:        r.TextChunk,
			Type:           r.Type,
			ConversationID: r.ConversationID,
			Timestamp:      r.CreatedAt.Format(time.RFC3339),
		}
		// Prefer the authoritative full content when the mirror row exists.
		if m, ok := byID[r.ID]; ok {
			res.Content = m.Content
			res.Type = m.Type
			res.ConversationID = m.ConversationID
		}
		results = append(results, res)
	}
	return results, nil
}

// Forget removes a single memory from both stores.
func (s *Service) Forget(ctx context.Context, memoryID string) error {
	if err := s.store.DeleteMemory(memoryID); err != nil {
		return err
	}
	if err := s.vectors.Delete(memoryID); err != nil {
		// The relational row is gone; a dangling vector row only wastes
		// space and can never be recalled with full content.
		s.logger.Warn("vector delete failed", "memory_id", memoryID, "error", err)
	}
	return nil
}

// ForgetConversation removes all memories attached to a conversation from
// both stores and returns how many were removed.
func (s *Service) ForgetConversation(ctx context.Context, conversationID string) (int, error) {
	ids, err := s.store.DeleteMemoriesByConversation(conversationID)
	if err != nil {
		return 0, err
	}
	if _, err := s.vectors.DeleteByConversation(conversationID); err != nil {
		s.logger.Warn("vector delete by conversation failed", "conversation_id", conversationID, "error", err)
	}
	return len(ids), nil
}

// ForgetAll always refuses; clearing every memory needs elevated
// authorization that is intentionally not implemented.
func (s *Service) ForgetAll(ctx context.Context) error {
	return ErrBulkClearNotAllowed
}

// ReconcileVector re-embeds a memory and re-inserts its vector row. Called
// by the reconciliation worker for queued vector_reconcile jobs.
func (s *Service) ReconcileVector(ctx context.Context, memoryID string) error {
	m, err := s.store.GetMemory(memoryID)
	if errors.Is(err, storage.ErrNotFound) {
		// Memory was forgotten before reconciliation ran; nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading memory %s: %w", memoryID, err)
	}

	vec, err := s.embedder.Embed(ctx, m.Content)
	if err != nil {
		return fmt.Errorf("re-embedding memory %s: %w", memoryID, err)
	}

	return s.vectors.Insert([]retrieval.Record{{
		ID:             m.ID,
		Type:           m.Type,
		ConversationID: m.ConversationID,
		TextChunk:      truncate(m.Content, chunkLimit),
		Embedding:      vec,
		CreatedAt:      m.CreatedAt,
	}})
}

func (s *Service) enqueueReconcile(memoryID string) {
	payload, err := json.Marshal(map[string]string{"memory_id": memoryID})
	if err != nil {
		s.logger.Error("encoding reconcile payload", "memory_id", memoryID, "error", err)
		return
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobVectorReconcile,
		PayloadJSON: string(payload),
	}
	if err := s.store.EnqueueJob(job); err != nil {
		s.logger.Error("enqueueing reconcile job", "memory_id", memoryID, "error", err)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
