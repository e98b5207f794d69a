package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Direction distinguishes who authored a conversation entry.
type Direction string

const (
	DirectionUser Direction = "user"
	DirectionBot  Direction = "bot"
)

// ConversationEntry is one logged exchange with a lead.
type ConversationEntry struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Direction Direction
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// AppendConversation records one message. Metadata may be nil.
func (r *Repository) AppendConversation(ctx context.Context, leadID uuid.UUID, direction Direction, content string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO conversation_log (id, lead_id, direction, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), leadID, direction, content, payload)
	return err
}

// LastUserMessage returns the most recent inbound message content for the
// lead, or "" when none exists. Used to drop duplicate consecutive sends
// from the channel.
func (r *Repository) LastUserMessage(ctx context.Context, leadID uuid.UUID) (string, error) {
	var content string
	err := r.pool.QueryRow(ctx, `
		SELECT content FROM conversation_log
		WHERE lead_id = $1 AND direction = 'user'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, leadID).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return content, err
}

// ListConversation returns the lead's conversation history, oldest first.
func (r *Repository) ListConversation(ctx context.Context, leadID uuid.UUID, limit int) ([]ConversationEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, direction, content, metadata, created_at
		FROM conversation_log
		WHERE lead_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]ConversationEntry, 0)
	for rows.Next() {
		var entry ConversationEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.Direction, &entry.Content, &payload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
