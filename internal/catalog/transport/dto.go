package transport

import "github.com/google/uuid"

// Properties

type CreatePropertyRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Address string `json:"address" validate:"max=300"`
	Area    string `json:"area" validate:"max=100"`
}

type PropertyResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Area    string    `json:"area"`
}

// Units

type CreateUnitRequest struct {
	PropertyID    uuid.UUID `json:"propertyId" validate:"required"`
	UnitNumber    string    `json:"unitNumber" validate:"required,min=1,max=50"`
	Price         int       `json:"price" validate:"required,min=0"`
	Rooms         int       `json:"rooms" validate:"required,min=1"`
	Floor         int       `json:"floor" validate:"min=-2,max=200"`
	HasParking    bool      `json:"hasParking"`
	IsFurnished   bool      `json:"isFurnished"`
	PetsAllowed   bool      `json:"petsAllowed"`
	AvailableFrom *string   `json:"availableFrom,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type UnitResponse struct {
	ID            uuid.UUID `json:"id"`
	PropertyID    uuid.UUID `json:"propertyId"`
	PropertyName  string    `json:"propertyName"`
	UnitNumber    string    `json:"unitNumber"`
	Status        string    `json:"status"`
	Price         int       `json:"price"`
	Rooms         int       `json:"rooms"`
	Floor         int       `json:"floor"`
	HasParking    bool      `json:"hasParking"`
	IsFurnished   bool      `json:"isFurnished"`
	PetsAllowed   bool      `json:"petsAllowed"`
	AvailableFrom *string   `json:"availableFrom,omitempty"`
}
