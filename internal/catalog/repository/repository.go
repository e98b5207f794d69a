package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leasingbot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Property represents the property database model
type Property struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	Area      string    `db:"area"`
	CreatedAt time.Time `db:"created_at"`
}

// Unit represents the unit database model
type Unit struct {
	ID            uuid.UUID  `db:"id"`
	PropertyID    uuid.UUID  `db:"property_id"`
	PropertyName  string     `db:"property_name"`
	UnitNumber    string     `db:"unit_number"`
	Status        string     `db:"status"`
	Price         int        `db:"price"`
	Rooms         int        `db:"rooms"`
	Floor         int        `db:"floor"`
	HasParking    bool       `db:"has_parking"`
	IsFurnished   bool       `db:"is_furnished"`
	PetsAllowed   bool       `db:"pets_allowed"`
	AvailableFrom *time.Time `db:"available_from"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Unit status values. Transitions are externally driven; the matcher only
// ever reads available units.
const (
	UnitStatusAvailable = "available"
	UnitStatusHold      = "hold"
	UnitStatusRented    = "rented"
)

const unitNotFoundMsg = "unit not found"

// Repository provides database operations for the property catalog
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProperty inserts a new property
func (r *Repository) CreateProperty(ctx context.Context, p *Property) error {
	query := `
		INSERT INTO properties (id, name, address, area, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Address, p.Area, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// ListProperties returns all properties ordered by name
func (r *Repository) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, address, area, created_at FROM properties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Area, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// CreateUnit inserts a new unit
func (r *Repository) CreateUnit(ctx context.Context, u *Unit) error {
	query := `
		INSERT INTO units (
			id, property_id, unit_number, status, price, rooms, floor,
			has_parking, is_furnished, pets_allowed, available_from, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.PropertyID, u.UnitNumber, u.Status, u.Price, u.Rooms, u.Floor,
		u.HasParking, u.IsFurnished, u.PetsAllowed, u.AvailableFrom, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unit: %w", err)
	}
	return nil
}

// GetUnit retrieves a unit by its ID with the property name joined in
func (r *Repository) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	var u Unit
	query := `
		SELECT u.id, u.property_id, p.name, u.unit_number, u.status, u.price, u.rooms,
			u.floor, u.has_parking, u.is_furnished, u.pets_allowed, u.available_from,
			u.created_at, u.updated_at
		FROM units u
		JOIN properties p ON p.id = u.property_id
		WHERE u.id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.PropertyID, &u.PropertyName, &u.UnitNumber, &u.Status, &u.Price, &u.Rooms,
		&u.Floor, &u.HasParking, &u.IsFurnished, &u.PetsAllowed, &u.AvailableFrom,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(unitNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return &u, nil
}

// ListAvailableUnits returns a snapshot of every available unit
func (r *Repository) ListAvailableUnits(ctx context.Context) ([]Unit, error) {
	query := `
		SELECT u.id, u.property_id, p.name, u.unit_number, u.status, u.price, u.rooms,
			u.floor, u.has_parking, u.is_furnished, u.pets_allowed, u.available_from,
			u.created_at, u.updated_at
		FROM units u
		JOIN properties p ON p.id = u.property_id
		WHERE u.status = 'available'
		ORDER BY u.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list available units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(
			&u.ID, &u.PropertyID, &u.PropertyName, &u.UnitNumber, &u.Status, &u.Price, &u.Rooms,
			&u.Floor, &u.HasParking, &u.IsFurnished, &u.PetsAllowed, &u.AvailableFrom,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// TransitionStatus performs a check-and-set status change. It fails with a
// conflict when the unit is not currently in the expected status, so an
// external hold/rent action can never be silently overwritten.
func (r *Repository) TransitionStatus(ctx context.Context, unitID uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE units SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, unitID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to transition unit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("unit is not %s", from))
	}
	return nil
}
