package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveAgent inserts or replaces an agent directory entry.
func (s *Store) SaveAgent(a Agent) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO agents (id, name, avatar, department, assistant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			department = excluded.department,
			assistant_id = excluded.assistant_id`,
		a.ID, a.Name, a.Avatar, a.Department, a.AssistantID, createdAt.Format(time.RFC3339),
	)
	return err
}

// GetAgent returns an agent by id.
func (s *Store) GetAgent(id string) (Agent, error) {
	var a Agent
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, name, avatar, department, assistant_id, created_at
		FROM agents WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Avatar, &a.Department, &a.AssistantID, &createdAt)
	if err == sql.ErrNoRows {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Agent{}, fmt.Errorf("parsing created_at for agent %s: %w", a.ID, err)
	}
	a.CreatedAt = t
	return a, nil
}

// ListAgents returns all agents, optionally filtered by department.
func (s *Store) ListAgents(department string) ([]Agent, error) {
	query := `SELECT id, name, avatar, department, assistant_id, created_at FROM agents`
	var args []any
	if department != "" {
		query += " WHERE department = ?"
		args = append(args, department)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Agent
	for rows.Next() {
		var a Agent
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Avatar, &a.Department, &a.AssistantID, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for agent %s: %w", a.ID, err)
		}
		a.CreatedAt = t
		results = append(results, a)
	}
	return results, rows.Err()
}
