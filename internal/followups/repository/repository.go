package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/platform/apperr"
)

// MessageType identifies the kind of scheduled outbound message.
type MessageType string

const (
	TypeEveningBefore MessageType = "evening_before_reminder"
	TypeMorningOf     MessageType = "morning_of_reminder"
	TypeThreeHours    MessageType = "three_hours_before_reminder"
	TypeAbandonedLead MessageType = "abandoned_lead_nudge"
	TypeAfterTour     MessageType = "follow_up_after_tour"
	TypeNoShow        MessageType = "no_show_follow_up"
)

// Status is the followup task lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Followup is one scheduled outbound message with its rendered content.
type Followup struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	AppointmentID *uuid.UUID
	MessageType   MessageType
	Content       string
	SendAt        time.Time
	Status        Status
	Attempts      int
	SentAt        *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const followupColumns = `id, lead_id, appointment_id, message_type, content, send_at,
	status, attempts, sent_at, error_message, created_at, updated_at`

func scanFollowup(row pgx.Row) (Followup, error) {
	var f Followup
	err := row.Scan(
		&f.ID, &f.LeadID, &f.AppointmentID, &f.MessageType, &f.Content, &f.SendAt,
		&f.Status, &f.Attempts, &f.SentAt, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

// CreateParams describes one task to schedule.
type CreateParams struct {
	LeadID        uuid.UUID
	AppointmentID *uuid.UUID
	MessageType   MessageType
	Content       string
	SendAt        time.Time
}

// InsertAll schedules the given tasks in one transaction. A task whose
// (lead, appointment, message_type) key already has a pending row is
// silently skipped, so scheduling the same appointment twice is a no-op.
// Returns the number of rows actually inserted.
func (r *Repository) InsertAll(ctx context.Context, tasks []CreateParams) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, task := range tasks {
		tag, err := tx.Exec(ctx, `
			INSERT INTO followups (id, lead_id, appointment_id, message_type, content, send_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (lead_id, appointment_id, message_type) WHERE status = 'pending'
			DO NOTHING
		`, uuid.New(), task.LeadID, task.AppointmentID, task.MessageType, task.Content, task.SendAt)
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, tx.Commit(ctx)
}

// CancelPendingForAppointment cancels every pending task tied to the
// appointment. Calling it again finds nothing and is a no-op.
func (r *Repository) CancelPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followups
		SET status = 'canceled', updated_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CancelPendingNudges cancels the lead's pending abandoned-lead nudges.
// A lead that just wrote back should not also be asked where they went.
func (r *Repository) CancelPendingNudges(ctx context.Context, leadID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followups
		SET status = 'canceled', updated_at = now()
		WHERE lead_id = $1 AND message_type = $2 AND status = 'pending'
	`, leadID, TypeAbandonedLead)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ClaimDue returns up to limit pending tasks whose send time has passed,
// locking the rows so concurrent dispatchers never claim the same task.
// Each claimed row gets its attempt counter bumped and its send_at pushed
// forward by the visibility window, so a crashed worker's task resurfaces
// on a later poll instead of being lost.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]Followup, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+followupColumns+`
		FROM followups
		WHERE status = 'pending' AND send_at <= $1
		ORDER BY send_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]Followup, 0, limit)
	for rows.Next() {
		f, err := scanFollowup(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, f)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range claimed {
		claimed[i].Attempts++
		_, err := tx.Exec(ctx, `
			UPDATE followups
			SET attempts = attempts + 1, send_at = $2, updated_at = now()
			WHERE id = $1
		`, claimed[i].ID, now.Add(visibility))
		if err != nil {
			return nil, err
		}
	}
	return claimed, tx.Commit(ctx)
}

// GetDelivery loads a task together with the lead's phone number for the
// dispatcher.
func (r *Repository) GetDelivery(ctx context.Context, id uuid.UUID) (Followup, string, error) {
	var f Followup
	var phone string
	err := r.pool.QueryRow(ctx, `
		SELECT f.id, f.lead_id, f.appointment_id, f.message_type, f.content, f.send_at,
			f.status, f.attempts, f.sent_at, f.error_message, f.created_at, f.updated_at,
			l.phone
		FROM followups f
		JOIN leads l ON l.id = f.lead_id
		WHERE f.id = $1
	`, id).Scan(
		&f.ID, &f.LeadID, &f.AppointmentID, &f.MessageType, &f.Content, &f.SendAt,
		&f.Status, &f.Attempts, &f.SentAt, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt,
		&phone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Followup{}, "", apperr.NotFound("followup not found")
	}
	return f, phone, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Followup, error) {
	f, err := scanFollowup(r.pool.QueryRow(ctx, `
		SELECT `+followupColumns+` FROM followups WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Followup{}, apperr.NotFound("followup not found")
	}
	return f, err
}

// MarkSent finalizes a delivered task and appends the delivered content
// to the lead's conversation log in the same transaction.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	f, err := scanFollowup(tx.QueryRow(ctx, `
		UPDATE followups
		SET status = 'sent', sent_at = now(), error_message = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+followupColumns+`
	`, id))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_log (id, lead_id, direction, content, metadata)
		VALUES ($1, $2, 'bot', $3, $4)
	`, uuid.New(), f.LeadID, f.Content, map[string]any{"followup_type": string(f.MessageType)})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed finalizes a task that exhausted its attempts. The status
// guard keeps a task canceled mid-delivery from being flipped to failed;
// zero rows updated is a no-op.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followups
		SET status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	return err
}

// ReturnPending puts a task back in the queue after a transient delivery
// failure, recording the reason. Attempts stay as counted by ClaimDue.
// The status guard keeps a task canceled mid-delivery from being
// resurrected; zero rows updated is a no-op.
func (r *Repository) ReturnPending(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followups
		SET status = 'pending', error_message = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	return err
}

// ListForLead returns the lead's followup tasks, newest first.
func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID) ([]Followup, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+followupColumns+`
		FROM followups
		WHERE lead_id = $1
		ORDER BY send_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Followup, 0)
	for rows.Next() {
		f, err := scanFollowup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
