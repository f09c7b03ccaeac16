package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// flagForLanguage maps a language code to the flag emoji shown in the
// dashboard conversation list.
func flagForLanguage(language string) string {
	switch language {
	case "sv", "swedish":
		return "\U0001F1F8\U0001F1EA"
	case "en", "english":
		return "\U0001F1EC\U0001F1E7"
	default:
		return ""
	}
}

// UpsertConversation creates a conversation when patch.ID is empty, applying
// defaults (language en, derived flag, status active). With an ID it patches
// only the non-nil fields and bumps updated_at.
func (s *Store) UpsertConversation(patch ConversationPatch) (Conversation, error) {
	if patch.ID == "" {
		return s.createConversation(patch)
	}
	return s.patchConversation(patch)
}

func (s *Store) createConversation(patch ConversationPatch) (Conversation, error) {
	now := time.Now().UTC()
	c := Conversation{
		ID:        uuid.New().String(),
		Language:  "en",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if patch.Language != nil && *patch.Language != "" {
		c.Language = *patch.Language
	}
	c.LanguageFlag = flagForLanguage(c.Language)
	if patch.VisitorID != nil {
		c.VisitorID = *patch.VisitorID
	}
	if patch.UserID != nil {
		c.UserID = *patch.UserID
	}
	if patch.ThreadID != nil {
		c.ThreadID = *patch.ThreadID
	}
	if patch.UserName != nil {
		c.UserName = *patch.UserName
	}
	if patch.UserEmail != nil {
		c.UserEmail = *patch.UserEmail
	}
	if patch.UserPhone != nil {
		c.UserPhone = *patch.UserPhone
	}
	if patch.RestaurantName != nil {
		c.RestaurantName = *patch.RestaurantName
	}
	if patch.UserType != nil {
		c.UserType = *patch.UserType
	}
	if patch.Status != nil && *patch.Status != "" {
		c.Status = *patch.Status
	}
	if patch.IsRegistered != nil {
		c.IsRegistered = *patch.IsRegistered
	}
	if patch.Rating != nil {
		c.Rating = *patch.Rating
	}
	if patch.RatingFeedback != nil {
		c.RatingFeedback = *patch.RatingFeedback
	}

	_, err := s.db.Exec(`
		INSERT INTO conversations (
			id, visitor_id, user_id, thread_id, user_name, user_email, user_phone,
			restaurant_name, user_type, language, language_flag, status,
			is_registered, rating, rating_feedback, message_count,
			first_message_at, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', '', ?, ?)`,
		c.ID, c.VisitorID, c.UserID, c.ThreadID, c.UserName, c.UserEmail, c.UserPhone,
		c.RestaurantName, c.UserType, c.Language, c.LanguageFlag, c.Status,
		boolToInt(c.IsRegistered), c.Rating, c.RatingFeedback,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("inserting conversation: %w", err)
	}
	return c, nil
}

func (s *Store) patchConversation(patch ConversationPatch) (Conversation, error) {
	set := "updated_at = ?"
	now := time.Now().UTC()
	args := []any{now.Format(time.RFC3339)}

	addString := func(col string, v *string) {
		if v != nil {
			set += ", " + col + " = ?"
			args = append(args, *v)
		}
	}
	addString("visitor_id", patch.VisitorID)
	addString("user_id", patch.UserID)
	addString("thread_id", patch.ThreadID)
	addString("user_name", patch.UserName)
	addString("user_email", patch.UserEmail)
	addString("user_phone", patch.UserPhone)
	addString("restaurant_name", patch.RestaurantName)
	addString("user_type", patch.UserType)
	addString("status", patch.Status)
	addString("rating_feedback", patch.RatingFeedback)
	if patch.Language != nil {
		set += ", language = ?, language_flag = ?"
		args = append(args, *patch.Language, flagForLanguage(*patch.Language))
	}
	if patch.IsRegistered != nil {
		set += ", is_registered = ?"
		args = append(args, boolToInt(*patch.IsRegistered))
	}
	if patch.Rating != nil {
		set += ", rating = ?"
		args = append(args, *patch.Rating)
	}
	args = append(args, patch.ID)

	res, err := s.db.Exec("UPDATE conversations SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return Conversation{}, fmt.Errorf("updating conversation %s: %w", patch.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Conversation{}, err
	}
	if n == 0 {
		return Conversation{}, ErrNotFound
	}
	return s.GetConversation(patch.ID)
}

const conversationColumns = `id, visitor_id, user_id, thread_id, user_name, user_email, user_phone,
	restaurant_name, user_type, language, language_flag, status, is_registered,
	rating, rating_feedback, message_count, first_message_at, last_message_at,
	created_at, updated_at`

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(id string) (Conversation, error) {
	row := s.db.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

// ActiveConversationByVisitor returns the visitor's most recent active
// conversation, so repeated flow calls in one session reuse one record.
func (s *Store) ActiveConversationByVisitor(visitorID string) (Conversation, error) {
	row := s.db.QueryRow(`SELECT `+conversationColumns+` FROM conversations
		WHERE visitor_id = ? AND status = 'active'
		ORDER BY updated_at DESC LIMIT 1`, visitorID)
	c, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

// ListConversations returns conversations most recently updated first,
// optionally filtered by status and user id.
func (s *Store) ListConversations(status, userID string, limit, offset int) ([]Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE 1=1`
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY updated_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id)
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
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendMessage stores a message and bumps the conversation's message count
// and last_message_at (first_message_at on the first message).
func (s *Store) AppendMessage(m Message) (Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	ts := m.CreatedAt.Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return Message{}, fmt.Errorf("beginning message transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, sender, content, node_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Sender, m.Content, m.NodeID, ts,
	); err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE conversations SET
			message_count = message_count + 1,
			last_message_at = ?,
			first_message_at = CASE WHEN first_message_at = '' THEN ? ELSE first_message_at END,
			updated_at = ?
		WHERE id = ?`,
		ts, ts, ts, m.ConversationID,
	)
	if err != nil {
		return Message{}, fmt.Errorf("updating conversation counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Message{}, err
	}
	if n == 0 {
		return Message{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Store) ListMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, sender, content, node_id, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.NodeID, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for message %s: %w", m.ID, err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

func scanConversation(scan func(dest ...any) error) (Conversation, error) {
	var c Conversation
	var isRegistered int
	var firstMsg, lastMsg, createdAt, updatedAt string
	err := scan(
		&c.ID, &c.VisitorID, &c.UserID, &c.ThreadID, &c.UserName, &c.UserEmail,
		&c.UserPhone, &c.RestaurantName, &c.UserType, &c.Language, &c.LanguageFlag,
		&c.Status, &isRegistered, &c.Rating, &c.RatingFeedback, &c.MessageCount,
		&firstMsg, &lastMsg, &createdAt, &updatedAt,
	)
	if err != nil {
		return Conversation{}, err
	}
	c.IsRegistered = isRegistered != 0

	parse := func(raw string, dst *time.Time) error {
		if raw == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("parsing timestamp for conversation %s: %w", c.ID, err)
		}
		*dst = t
		return nil
	}
	if err := parse(firstMsg, &c.FirstMessageAt); err != nil {
		return Conversation{}, err
	}
	if err := parse(lastMsg, &c.LastMessageAt); err != nil {
		return Conversation{}, err
	}
	if err := parse(createdAt, &c.CreatedAt); err != nil {
		return Conversation{}, err
	}
	if err := parse(updatedAt, &c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}
