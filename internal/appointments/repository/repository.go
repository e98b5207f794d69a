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

// Status is the appointment lifecycle state. Pending is the transient
// sub-state between row creation and calendar confirmation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

// Appointment is a tour booking row.
type Appointment struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	UnitID          *uuid.UUID
	ExternalEventID *string
	ScheduledTime   time.Time
	DurationMinutes int
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, lead_id, unit_id, external_event_id, scheduled_time,
	duration_minutes, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.LeadID, &a.UnitID, &a.ExternalEventID, &a.ScheduledTime,
		&a.DurationMinutes, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// CreatePendingParams carries what a proposed booking needs before the
// calendar has confirmed it.
type CreatePendingParams struct {
	LeadID          uuid.UUID
	UnitID          uuid.UUID
	ScheduledTime   time.Time
	DurationMinutes int
}

// CreatePending inserts a pending appointment inside one transaction that
// locks the unit row. The unit must be available and no other active
// appointment may hold the same unit and slot, so two concurrent proposals
// cannot double-book.
func (r *Repository) CreatePending(ctx context.Context, params CreatePendingParams) (Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Appointment{}, err
	}
	defer tx.Rollback(ctx)

	var unitStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM units WHERE id = $1 FOR UPDATE
	`, params.UnitID).Scan(&unitStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.NotFound("unit not found")
	}
	if err != nil {
		return Appointment{}, err
	}
	if unitStatus != "available" {
		return Appointment{}, apperr.Conflict("unit is not available for tours")
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE unit_id = $1 AND scheduled_time = $2
			  AND status IN ('pending', 'scheduled')
		)
	`, params.UnitID, params.ScheduledTime).Scan(&taken)
	if err != nil {
		return Appointment{}, err
	}
	if taken {
		return Appointment{}, apperr.Conflict("slot already booked for this unit")
	}

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, lead_id, unit_id, scheduled_time, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING `+appointmentColumns+`
	`, uuid.New(), params.LeadID, params.UnitID, params.ScheduledTime, params.DurationMinutes))
	if isUniqueViolation(err) {
		return Appointment{}, apperr.Conflict("lead already has an active appointment")
	}
	if err != nil {
		return Appointment{}, err
	}

	return appt, tx.Commit(ctx)
}

// Promote moves a pending appointment to scheduled once the calendar
// confirmed it, recording the external event ID.
func (r *Repository) Promote(ctx context.Context, id uuid.UUID, externalEventID string) (Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'scheduled', external_event_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+appointmentColumns+`
	`, id, externalEventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.Conflict("appointment is not pending")
	}
	return appt, err
}

// DeletePending removes a half-booked row after the calendar rejected the
// booking, freeing the one-active-per-lead slot.
func (r *Repository) DeletePending(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

// CancelActiveForLead cancels the lead's active appointment if one exists
// and returns it, or nil when there was nothing to cancel.
func (r *Repository) CancelActiveForLead(ctx context.Context, leadID uuid.UUID) (*Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'canceled', updated_at = now()
		WHERE lead_id = $1 AND status IN ('pending', 'scheduled')
		RETURNING `+appointmentColumns+`
	`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.NotFound("appointment not found")
	}
	return appt, err
}

func (r *Repository) GetByExternalEventID(ctx context.Context, externalEventID string) (Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE external_event_id = $1
	`, externalEventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.NotFound("appointment not found")
	}
	return appt, err
}

// GetActiveByLead returns the lead's pending or scheduled appointment.
func (r *Repository) GetActiveByLead(ctx context.Context, leadID uuid.UUID) (Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE lead_id = $1 AND status IN ('pending', 'scheduled')
	`, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.NotFound("no active appointment for lead")
	}
	return appt, err
}

// Transition moves an appointment between statuses with a guard on the
// current status. Returns Conflict if the appointment is not in any of
// the expected statuses.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from []Status, to Status) (Appointment, error) {
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)
		RETURNING `+appointmentColumns+`
	`, id, statuses, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appointment{}, apperr.Conflict("appointment status does not allow this transition")
	}
	return appt, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
