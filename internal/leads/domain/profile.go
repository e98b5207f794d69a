package domain

import "time"

// ProfileField identifies one of the preference fields collected before
// matching. Every field must be answered or explicitly skipped before the
// lead qualifies.
type ProfileField string

const (
	FieldRooms     ProfileField = "rooms"
	FieldBudget    ProfileField = "budget"
	FieldParking   ProfileField = "has_parking"
	FieldArea      ProfileField = "preferred_area"
	FieldFloorMin  ProfileField = "preferred_floor_min"
	FieldFloorMax  ProfileField = "preferred_floor_max"
	FieldFurnished ProfileField = "needs_furnished"
	FieldPetOwner  ProfileField = "pet_owner"
)

// profileOrder is the order in which missing fields are asked.
var profileOrder = []ProfileField{
	FieldRooms,
	FieldBudget,
	FieldParking,
	FieldArea,
	FieldFloorMin,
	FieldFloorMax,
	FieldFurnished,
	FieldPetOwner,
}

// IsKnownProfileField reports whether f is a collectable preference field.
func IsKnownProfileField(f ProfileField) bool {
	for _, known := range profileOrder {
		if f == known {
			return true
		}
	}
	return false
}

// Profile accumulates the lead's structured preferences. Nil means
// unanswered; Skipped marks fields the lead declined to answer.
type Profile struct {
	Rooms          *int
	Budget         *int
	NeedsParking   *bool
	PreferredArea  *string
	FloorMin       *int
	FloorMax       *int
	NeedsFurnished *bool
	PetOwner       *bool
	Skipped        map[ProfileField]bool
}

func (p Profile) answered(f ProfileField) bool {
	if p.Skipped[f] {
		return true
	}
	switch f {
	case FieldRooms:
		return p.Rooms != nil
	case FieldBudget:
		return p.Budget != nil
	case FieldParking:
		return p.NeedsParking != nil
	case FieldArea:
		return p.PreferredArea != nil
	case FieldFloorMin:
		return p.FloorMin != nil
	case FieldFloorMax:
		return p.FloorMax != nil
	case FieldFurnished:
		return p.NeedsFurnished != nil
	case FieldPetOwner:
		return p.PetOwner != nil
	default:
		return false
	}
}

// NextMissing returns the first unanswered, unskipped field, or "" when the
// profile is complete.
func (p Profile) NextMissing() ProfileField {
	for _, f := range profileOrder {
		if !p.answered(f) {
			return f
		}
	}
	return ""
}

// Complete reports whether every field is answered or skipped.
func (p Profile) Complete() bool {
	return p.NextMissing() == ""
}

// markSkipped returns a copy of the profile with f marked skipped.
func (p Profile) markSkipped(f ProfileField) Profile {
	skipped := make(map[ProfileField]bool, len(p.Skipped)+1)
	for k, v := range p.Skipped {
		skipped[k] = v
	}
	skipped[f] = true
	p.Skipped = skipped
	return p
}

// LeadState is the mutable slice of the lead aggregate the stage machine
// operates on. It is passed by value; Advance returns the next state.
type LeadState struct {
	Stage         Stage
	HasPayslips   *bool
	CanPayDeposit *bool
	MoveInDate    *time.Time
	Profile       Profile
}
