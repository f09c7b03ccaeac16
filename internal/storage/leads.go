package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoLeadKey is returned when an upsert carries neither an email nor a
// visitor id to dedupe on.
var ErrNoLeadKey = errors.New("lead requires an email or visitor id")

// LeadInput carries the fields accepted on lead registration. Empty strings
// leave existing values untouched on update.
type LeadInput struct {
	VisitorID      string
	Email          string
	Name           string
	Phone          string
	RestaurantName string
	UserType       string
	Language       string
	Status         string
	CustomFields   string
	Tags           string
	ConversationID string
}

// NormalizeEmail lowercases and trims an email for use as the dedup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertLead creates or updates a lead, deduplicating on normalized email
// when present, else on visitor id. It retroactively links matching
// anonymous conversations to the lead and copies display fields onto them
// so the conversation list stays self-describing without a join.
// Calling it twice with the same keys never creates a second record.
func (s *Store) UpsertLead(in LeadInput) (Lead, bool, error) {
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" && in.VisitorID == "" {
		return Lead{}, false, ErrNoLeadKey
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Lead{}, false, fmt.Errorf("beginning lead transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := findLeadTx(tx, in.Email, in.VisitorID)
	created := false
	now := time.Now().UTC()

	switch {
	case err == nil:
		if err := updateLeadTx(tx, existing.ID, in, now); err != nil {
			return Lead{}, false, err
		}
	case errors.Is(err, ErrNotFound):
		created = true
		existing.ID = uuid.New().String()
		if err := insertLeadTx(tx, existing.ID, in, now); err != nil {
			return Lead{}, false, err
		}
	default:
		return Lead{}, false, err
	}

	if err := linkConversationsTx(tx, existing.ID, in, now); err != nil {
		return Lead{}, false, err
	}
	if err := refreshLeadTotalsTx(tx, existing.ID, now); err != nil {
		return Lead{}, false, err
	}

	lead, err := getLeadTx(tx, existing.ID)
	if err != nil {
		return Lead{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Lead{}, false, err
	}
	return lead, created, nil
}

func findLeadTx(tx *sql.Tx, email, visitorID string) (Lead, error) {
	var row *sql.Row
	if email != "" {
		row = tx.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE email = ?`, email)
	} else {
		row = tx.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE visitor_id = ? ORDER BY created_at ASC LIMIT 1`, visitorID)
	}
	lead, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func insertLeadTx(tx *sql.Tx, id string, in LeadInput, now time.Time) error {
	status := in.Status
	if status == "" {
		status = "lead"
	}
	language := in.Language
	if language == "" {
		language = "en"
	}
	customFields := in.CustomFields
	if customFields == "" {
		customFields = "{}"
	}
	tags := in.Tags
	if tags == "" {
		tags = "[]"
	}
	_, err := tx.Exec(`
		INSERT INTO leads (id, visitor_id, email, name, phone, restaurant_name,
			user_type, language, status, total_conversations, total_messages,
			custom_fields, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?)`,
		id, in.VisitorID, in.Email, in.Name, in.Phone, in.RestaurantName,
		in.UserType, language, status, customFields, tags,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

func updateLeadTx(tx *sql.Tx, id string, in LeadInput, now time.Time) error {
	set := "updated_at = ?"
	args := []any{now.Format(time.RFC3339)}
	add := func(col, v string) {
		if v != "" {
			set += ", " + col + " = ?"
			args = append(args, v)
		}
	}
	add("visitor_id", in.VisitorID)
	add("email", in.Email)
	add("name", in.Name)
	add("phone", in.Phone)
	add("restaurant_name", in.RestaurantName)
	add("user_type", in.UserType)
	add("language", in.Language)
	add("status", in.Status)
	add("custom_fields", in.CustomFields)
	add("tags", in.Tags)
	args = append(args, id)

	if _, err := tx.Exec("UPDATE leads SET "+set+" WHERE id = ?", args...); err != nil {
		return fmt.Errorf("updating lead %s: %w", id, err)
	}
	return nil
}

// linkConversationsTx attaches the lead to conversations matching its
// visitor id or the originating conversation id that have no user yet.
func linkConversationsTx(tx *sql.Tx, leadID string, in LeadInput, now time.Time) error {
	if in.VisitorID == "" && in.ConversationID == "" {
		return nil
	}

	query := `
		UPDATE conversations SET
			user_id = ?,
			is_registered = 1,
			user_name = CASE WHEN ? != '' THEN ? ELSE user_name END,
			user_email = CASE WHEN ? != '' THEN ? ELSE user_email END,
			user_phone = CASE WHEN ? != '' THEN ? ELSE user_phone END,
			restaurant_name = CASE WHEN ? != '' THEN ? ELSE restaurant_name END,
			user_type = CASE WHEN ? != '' THEN ? ELSE user_type END,
			updated_at = ?
		WHERE user_id = '' AND (`
	args := []any{
		leadID,
		in.Name, in.Name,
		in.Email, in.Email,
		in.Phone, in.Phone,
		in.RestaurantName, in.RestaurantName,
		in.UserType, in.UserType,
		now.Format(time.RFC3339),
	}

	var conds []string
	if in.VisitorID != "" {
		conds = append(conds, "visitor_id = ?")
		args = append(args, in.VisitorID)
	}
	if in.ConversationID != "" {
		conds = append(conds, "id = ?")
		args = append(args, in.ConversationID)
	}
	query += strings.Join(conds, " OR ") + ")"

	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("linking conversations to lead %s: %w", leadID, err)
	}
	return nil
}

func refreshLeadTotalsTx(tx *sql.Tx, leadID string, now time.Time) error {
	_, err := tx.Exec(`
		UPDATE leads SET
			total_conversations = (SELECT COUNT(*) FROM conversations WHERE user_id = ?),
			total_messages = (SELECT COALESCE(SUM(message_count), 0) FROM conversations WHERE user_id = ?),
			updated_at = ?
		WHERE id = ?`,
		leadID, leadID, now.Format(time.RFC3339), leadID,
	)
	if err != nil {
		return fmt.Errorf("refreshing lead totals: %w", err)
	}
	return nil
}

const leadColumns = `id, visitor_id, email, name, phone, restaurant_name, user_type,
	language, status, total_conversations, total_messages, custom_fields, tags,
	created_at, updated_at`

func getLeadTx(tx *sql.Tx, id string) (Lead, error) {
	row := tx.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// GetLeadByEmail returns the lead with the given (normalized) email.
func (s *Store) GetLeadByEmail(email string) (Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE email = ?`, NormalizeEmail(email))
	lead, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// GetLeadByVisitor returns the earliest lead recorded for a visitor id.
func (s *Store) GetLeadByVisitor(visitorID string) (Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE visitor_id = ? ORDER BY created_at ASC LIMIT 1`, visitorID)
	lead, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListLeads returns leads most recently updated first, optionally filtered
// by status and a case-insensitive search over name, email, and restaurant.
func (s *Store) ListLeads(search, status string, limit, offset int) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += " AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(restaurant_name) LIKE ?)"
		args = append(args, pattern, pattern, pattern)
	}
	query += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Lead
	for rows.Next() {
		lead, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, lead)
	}
	return results, rows.Err()
}

// GetLeadStats aggregates lead counts by status.
func (s *Store) GetLeadStats() (LeadStats, error) {
	var stats LeadStats
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return LeadStats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return LeadStats{}, err
		}
		stats.Total += count
		switch status {
		case "lead":
			stats.Leads = count
		case "qualified":
			stats.Qualified = count
		case "customer":
			stats.Customers = count
		}
	}
	return stats, rows.Err()
}

func scanLead(scan func(dest ...any) error) (Lead, error) {
	var l Lead
	var createdAt, updatedAt string
	err := scan(
		&l.ID, &l.VisitorID, &l.Email, &l.Name, &l.Phone, &l.RestaurantName,
		&l.UserType, &l.Language, &l.Status, &l.TotalConversations,
		&l.TotalMessages, &l.CustomFields, &l.Tags, &createdAt, &updatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Lead{}, fmt.Errorf("parsing created_at for lead %s: %w", l.ID, err)
	}
	l.CreatedAt = t
	t, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return Lead{}, fmt.Errorf("parsing updated_at for lead %s: %w", l.ID, err)
	}
	l.UpdatedAt = t
	return l, nil
}
