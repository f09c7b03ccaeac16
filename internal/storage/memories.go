package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SaveMemory inserts the authoritative full-content row for a memory.
func (s *Store) SaveMemory(m Memory) error {
	metadata := m.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO memories (id, conversation_id, content, type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Content, m.Type, metadata, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting memory %s: %w", m.ID, err)
	}
	return nil
}

// GetMemory returns a memory by id.
func (s *Store) GetMemory(id string) (Memory, error) {
	row := s.db.QueryRow(`
		SELECT id, conversation_id, content, type, metadata, created_at
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row.Scan)
	if err == sql.ErrNoRows {
		return Memory{}, ErrNotFound
	}
	return m, err
}

// GetMemories returns memories for the given ids. Missing ids are skipped.
func (s *Store) GetMemories(ids []string) ([]Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, conversation_id, content, type, metadata, created_at
		FROM memories WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Memory
	for rows.Next() {
		m, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// DeleteMemory removes a memory's full-content row.
func (s *Store) DeleteMemory(id string) error {
	res, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMemoriesByConversation removes all memory rows for a conversation
// and returns the ids that were deleted, so callers can clean the vector
// side with the same keys.
func (s *Store) DeleteMemoriesByConversation(conversationID string) ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM memories WHERE conversation_id = ?", conversationID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec("DELETE FROM memories WHERE conversation_id = ?", conversationID); err != nil {
		return nil, err
	}
	return ids, nil
}

func scanMemory(scan func(dest ...any) error) (Memory, error) {
	var m Memory
	var createdAt string
	if err := scan(&m.ID, &m.ConversationID, &m.Content, &m.Type, &m.Metadata, &createdAt); err != nil {
		return Memory{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Memory{}, fmt.Errorf("parsing created_at for memory %s: %w", m.ID, err)
	}
	m.CreatedAt = t
	return m, nil
}
