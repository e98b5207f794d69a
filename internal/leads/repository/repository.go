package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leasingbot_backend/internal/leads/domain"
	"leasingbot_backend/platform/apperr"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead is the persisted lead aggregate row.
type Lead struct {
	ID              uuid.UUID
	Phone           string
	Name            string
	Email           *string
	Stage           domain.Stage
	HasPayslips     *bool
	CanPayDeposit   *bool
	MoveInDate      *time.Time
	Rooms           *int
	Budget          *int
	NeedsParking    *bool
	PreferredArea   *string
	FloorMin        *int
	FloorMax        *int
	NeedsFurnished  *bool
	PetOwner        *bool
	SkippedFields   []string
	Source          string
	CreatedAt       time.Time
	LastInteraction time.Time
}

// State projects the row onto the value the stage machine operates on.
func (l Lead) State() domain.LeadState {
	skipped := make(map[domain.ProfileField]bool, len(l.SkippedFields))
	for _, f := range l.SkippedFields {
		skipped[domain.ProfileField(f)] = true
	}
	return domain.LeadState{
		Stage:         l.Stage,
		HasPayslips:   l.HasPayslips,
		CanPayDeposit: l.CanPayDeposit,
		MoveInDate:    l.MoveInDate,
		Profile: domain.Profile{
			Rooms:          l.Rooms,
			Budget:         l.Budget,
			NeedsParking:   l.NeedsParking,
			PreferredArea:  l.PreferredArea,
			FloorMin:       l.FloorMin,
			FloorMax:       l.FloorMax,
			NeedsFurnished: l.NeedsFurnished,
			PetOwner:       l.PetOwner,
			Skipped:        skipped,
		},
	}
}

const leadColumns = `id, phone, name, email, stage, has_payslips, can_pay_deposit, move_in_date,
	rooms, budget, needs_parking, preferred_area, preferred_floor_min, preferred_floor_max,
	needs_furnished, pet_owner, skipped_fields, source, created_at, last_interaction`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.Phone, &l.Name, &l.Email, &l.Stage, &l.HasPayslips, &l.CanPayDeposit, &l.MoveInDate,
		&l.Rooms, &l.Budget, &l.NeedsParking, &l.PreferredArea, &l.FloorMin, &l.FloorMax,
		&l.NeedsFurnished, &l.PetOwner, &l.SkippedFields, &l.Source, &l.CreatedAt, &l.LastInteraction,
	)
	return l, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE phone = $1
	`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// CreateParams carries the fields set when a lead first contacts us.
type CreateParams struct {
	Phone  string
	Name   string
	Source string
}

// Create inserts a new lead in the initial stage. The phone unique
// constraint surfaces as a conflict so callers can fall back to GetByPhone
// when two inbound messages race.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, phone, name, source)
		VALUES ($1, $2, $3, $4)
		RETURNING `+leadColumns+`
	`, uuid.New(), params.Phone, params.Name, params.Source))
	if isUniqueViolation(err) {
		return Lead{}, apperr.Conflict("lead already exists for phone")
	}
	return lead, err
}

// SaveState writes back the stage, gate answers and profile after an
// accepted transition, and touches last_interaction.
func (r *Repository) SaveState(ctx context.Context, id uuid.UUID, state domain.LeadState) error {
	skipped := make([]string, 0, len(state.Profile.Skipped))
	for f := range state.Profile.Skipped {
		skipped = append(skipped, string(f))
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			stage = $2,
			has_payslips = $3,
			can_pay_deposit = $4,
			move_in_date = $5,
			rooms = $6,
			budget = $7,
			needs_parking = $8,
			preferred_area = $9,
			preferred_floor_min = $10,
			preferred_floor_max = $11,
			needs_furnished = $12,
			pet_owner = $13,
			skipped_fields = $14,
			last_interaction = now()
		WHERE id = $1
	`, id,
		state.Stage, state.HasPayslips, state.CanPayDeposit, state.MoveInDate,
		state.Profile.Rooms, state.Profile.Budget, state.Profile.NeedsParking,
		state.Profile.PreferredArea, state.Profile.FloorMin, state.Profile.FloorMax,
		state.Profile.NeedsFurnished, state.Profile.PetOwner, skipped,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// TouchLastInteraction bumps the idle clock without changing state. Used
// when an inbound message is absorbed without a transition.
func (r *Repository) TouchLastInteraction(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE leads SET last_interaction = now() WHERE id = $1`, id)
	return err
}

// ListIdleInStage returns leads sitting in the given stage whose last
// interaction predates the cutoff. Drives the abandoned-lead sweep.
func (r *Repository) ListIdleInStage(ctx context.Context, stage domain.Stage, cutoff time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE stage = $1 AND last_interaction < $2
		ORDER BY last_interaction ASC
	`, stage, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
