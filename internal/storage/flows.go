package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveFlow inserts or replaces a flow document.
func (s *Store) SaveFlow(f Flow) error {
	updatedAt := f.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO flows (id, language, nodes_json, connections_json, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			language = excluded.language,
			nodes_json = excluded.nodes_json,
			connections_json = excluded.connections_json,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		f.ID, f.Language, f.NodesJSON, f.ConnectionsJSON, boolToInt(f.IsActive),
		updatedAt.Format(time.RFC3339),
	)
	return err
}

// ActiveFlow returns the active flow for the given language. Several active
// rows may exist for one language; the most recently updated one wins.
func (s *Store) ActiveFlow(language string) (Flow, error) {
	row := s.db.QueryRow(`
		SELECT id, language, nodes_json, connections_json, is_active, updated_at
		FROM flows
		WHERE language = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1`, language)
	return scanFlow(row)
}

// GetFlow returns a flow by id.
func (s *Store) GetFlow(id string) (Flow, error) {
	row := s.db.QueryRow(`
		SELECT id, language, nodes_json, connections_json, is_active, updated_at
		FROM flows WHERE id = ?`, id)
	return scanFlow(row)
}

// ListFlows returns all stored flows, most recently updated first.
func (s *Store) ListFlows() ([]Flow, error) {
	rows, err := s.db.Query(`
		SELECT id, language, nodes_json, connections_json, is_active, updated_at
		FROM flows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []Flow
	for rows.Next() {
		var f Flow
		var active int
		var updatedAt string
		if err := rows.Scan(&f.ID, &f.Language, &f.NodesJSON, &f.ConnectionsJSON, &active, &updatedAt); err != nil {
			return nil, err
		}
		f.IsActive = active != 0
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at for flow %s: %w", f.ID, err)
		}
		f.UpdatedAt = t
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

func scanFlow(row *sql.Row) (Flow, error) {
	var f Flow
	var active int
	var updatedAt string
	err := row.Scan(&f.ID, &f.Language, &f.NodesJSON, &f.ConnectionsJSON, &active, &updatedAt)
	if err == sql.ErrNoRows {
		return Flow{}, ErrNotFound
	}
	if err != nil {
		return Flow{}, err
	}
	f.IsActive = active != 0
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return Flow{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	f.UpdatedAt = t
	return f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
