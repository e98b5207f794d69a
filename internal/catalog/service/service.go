package service

import (
	"context"
	"time"

	"leasingbot_backend/internal/catalog/repository"
	"leasingbot_backend/internal/catalog/transport"
	"leasingbot_backend/internal/matching"
	"leasingbot_backend/platform/apperr"

	"github.com/google/uuid"
)

const dateFormat = "2006-01-02"

// Store is the persistence surface the service needs, implemented by
// repository.Repository.
type Store interface {
	CreateProperty(ctx context.Context, p *repository.Property) error
	ListProperties(ctx context.Context) ([]repository.Property, error)
	CreateUnit(ctx context.Context, u *repository.Unit) error
	GetUnit(ctx context.Context, id uuid.UUID) (*repository.Unit, error)
	ListAvailableUnits(ctx context.Context) ([]repository.Unit, error)
	TransitionStatus(ctx context.Context, unitID uuid.UUID, from, to string) error
}

// Service provides business logic for the property catalog. Unit status
// transitions are externally driven (hold/rent actions); the qualification
// core only ever reads available units through AvailableUnitsSnapshot.
type Service struct {
	repo Store
}

// New creates a new catalog service
func New(repo Store) *Service {
	return &Service{repo: repo}
}

// CreateProperty registers a new property.
func (s *Service) CreateProperty(ctx context.Context, req transport.CreatePropertyRequest) (*transport.PropertyResponse, error) {
	p := &repository.Property{
		ID:        uuid.New(),
		Name:      req.Name,
		Address:   req.Address,
		Area:      req.Area,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateProperty(ctx, p); err != nil {
		return nil, err
	}
	return &transport.PropertyResponse{ID: p.ID, Name: p.Name, Address: p.Address, Area: p.Area}, nil
}

// ListProperties returns all properties.
func (s *Service) ListProperties(ctx context.Context) ([]transport.PropertyResponse, error) {
	properties, err := s.repo.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.PropertyResponse, 0, len(properties))
	for _, p := range properties {
		out = append(out, transport.PropertyResponse{ID: p.ID, Name: p.Name, Address: p.Address, Area: p.Area})
	}
	return out, nil
}

// CreateUnit registers a new unit under a property.
func (s *Service) CreateUnit(ctx context.Context, req transport.CreateUnitRequest) (*transport.UnitResponse, error) {
	now := time.Now().UTC()
	u := &repository.Unit{
		ID:          uuid.New(),
		PropertyID:  req.PropertyID,
		UnitNumber:  req.UnitNumber,
		Status:      repository.UnitStatusAvailable,
		Price:       req.Price,
		Rooms:       req.Rooms,
		Floor:       req.Floor,
		HasParking:  req.HasParking,
		IsFurnished: req.IsFurnished,
		PetsAllowed: req.PetsAllowed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.AvailableFrom != nil {
		from, err := time.Parse(dateFormat, *req.AvailableFrom)
		if err != nil {
			return nil, apperr.Validation("availableFrom must be a YYYY-MM-DD date")
		}
		u.AvailableFrom = &from
	}
	if err := s.repo.CreateUnit(ctx, u); err != nil {
		return nil, err
	}
	resp := toUnitResponse(*u)
	return &resp, nil
}

// ListAvailableUnits returns the available units for the admin surface.
func (s *Service) ListAvailableUnits(ctx context.Context) ([]transport.UnitResponse, error) {
	units, err := s.repo.ListAvailableUnits(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.UnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitResponse(u))
	}
	return out, nil
}

// AvailableUnitsSnapshot returns the matcher's read-only view of every
// available unit.
func (s *Service) AvailableUnitsSnapshot(ctx context.Context) ([]matching.Unit, error) {
	units, err := s.repo.ListAvailableUnits(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Unit, 0, len(units))
	for _, u := range units {
		out = append(out, matching.Unit{
			ID:            u.ID,
			PropertyID:    u.PropertyID,
			PropertyName:  u.PropertyName,
			UnitNumber:    u.UnitNumber,
			Price:         u.Price,
			Rooms:         u.Rooms,
			Floor:         u.Floor,
			HasParking:    u.HasParking,
			IsFurnished:   u.IsFurnished,
			PetsAllowed:   u.PetsAllowed,
			AvailableFrom: u.AvailableFrom,
		})
	}
	return out, nil
}

// UnitSnapshot returns the matcher's view of one unit regardless of its
// status, for rendering a selection the lead already made.
func (s *Service) UnitSnapshot(ctx context.Context, unitID uuid.UUID) (matching.Unit, error) {
	u, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return matching.Unit{}, err
	}
	return matching.Unit{
		ID:            u.ID,
		PropertyID:    u.PropertyID,
		PropertyName:  u.PropertyName,
		UnitNumber:    u.UnitNumber,
		Price:         u.Price,
		Rooms:         u.Rooms,
		Floor:         u.Floor,
		HasParking:    u.HasParking,
		IsFurnished:   u.IsFurnished,
		PetsAllowed:   u.PetsAllowed,
		AvailableFrom: u.AvailableFrom,
	}, nil
}

// Hold provisionally reserves an available unit, excluding it from matching.
func (s *Service) Hold(ctx context.Context, unitID uuid.UUID) error {
	return s.repo.TransitionStatus(ctx, unitID, repository.UnitStatusAvailable, repository.UnitStatusHold)
}

// Release returns a held unit to the available pool.
func (s *Service) Release(ctx context.Context, unitID uuid.UUID) error {
	return s.repo.TransitionStatus(ctx, unitID, repository.UnitStatusHold, repository.UnitStatusAvailable)
}

// MarkRented finalizes a hold into a rental.
func (s *Service) MarkRented(ctx context.Context, unitID uuid.UUID) error {
	return s.repo.TransitionStatus(ctx, unitID, repository.UnitStatusHold, repository.UnitStatusRented)
}

func toUnitResponse(u repository.Unit) transport.UnitResponse {
	resp := transport.UnitResponse{
		ID:           u.ID,
		PropertyID:   u.PropertyID,
		PropertyName: u.PropertyName,
		UnitNumber:   u.UnitNumber,
		Status:       u.Status,
		Price:        u.Price,
		Rooms:        u.Rooms,
		Floor:        u.Floor,
		HasParking:   u.HasParking,
		IsFurnished:  u.IsFurnished,
		PetsAllowed:  u.PetsAllowed,
	}
	if u.AvailableFrom != nil {
		formatted := u.AvailableFrom.Format(dateFormat)
		resp.AvailableFrom = &formatted
	}
	return resp
}
