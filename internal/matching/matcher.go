// Package matching ranks available units against a qualified lead's
// profile. Matching is pure over a snapshot of units: no database access,
// no mutation, deterministic ordering.
package matching

import (
	"sort"
	"time"

	"leasingbot_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Unit is the matcher's read-only view of an available unit. The catalog
// module produces these snapshots; the matcher never touches unit status.
type Unit struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	PropertyName  string
	UnitNumber    string
	Price         int
	Rooms         int
	Floor         int
	HasParking    bool
	IsFurnished   bool
	PetsAllowed   bool
	AvailableFrom *time.Time
}

// Policy carries the matcher tunables.
type Policy struct {
	// StrictRooms requires an exact room count instead of at-least.
	StrictRooms bool
	// MaxResults truncates the ranked list; zero means no limit.
	MaxResults int
}

// Outcome routes the lead after a matching run.
type Outcome string

const (
	// OutcomeMatched means at least one unit passed every constraint.
	OutcomeMatched Outcome = "matched"
	// OutcomeNoFit means nothing passes even ignoring availability dates;
	// budget or hard requirements are the binding constraint.
	OutcomeNoFit Outcome = "no_fit"
	// OutcomeFutureFit means units satisfy every constraint except that
	// they become available later than the desired move-in date.
	OutcomeFutureFit Outcome = "future_fit"
)

// Result is the ranked outcome of one matching run.
type Result struct {
	Outcome Outcome
	Units   []Unit
}

// Match filters and ranks the unit snapshot against the lead's profile.
// Repeated calls against an unchanged snapshot return identical ordering.
func Match(lead domain.LeadState, units []Unit, policy Policy) Result {
	eligible := filter(lead, units, policy, true)
	if len(eligible) > 0 {
		rank(eligible, lead.Profile.Budget)
		if policy.MaxResults > 0 && len(eligible) > policy.MaxResults {
			eligible = eligible[:policy.MaxResults]
		}
		return Result{Outcome: OutcomeMatched, Units: eligible}
	}

	// Distinguish a later-availability miss from a hard miss: re-run with
	// the availability constraint relaxed. A non-empty relaxed set means
	// available_from was the only binding constraint.
	if relaxed := filter(lead, units, policy, false); len(relaxed) > 0 {
		return Result{Outcome: OutcomeFutureFit}
	}
	return Result{Outcome: OutcomeNoFit}
}

func filter(lead domain.LeadState, units []Unit, policy Policy, checkAvailability bool) []Unit {
	p := lead.Profile
	out := make([]Unit, 0, len(units))

	for _, u := range units {
		if p.Rooms != nil {
			if policy.StrictRooms && u.Rooms != *p.Rooms {
				continue
			}
			if !policy.StrictRooms && u.Rooms < *p.Rooms {
				continue
			}
		}
		if p.Budget != nil && u.Price > *p.Budget {
			continue
		}
		if p.NeedsParking != nil && *p.NeedsParking && !u.HasParking {
			continue
		}
		if p.FloorMin != nil && p.FloorMax != nil {
			if u.Floor < *p.FloorMin || u.Floor > *p.FloorMax {
				continue
			}
		}
		if p.NeedsFurnished != nil && *p.NeedsFurnished && !u.IsFurnished {
			continue
		}
		if p.PetOwner != nil && *p.PetOwner && !u.PetsAllowed {
			continue
		}
		if checkAvailability && lead.MoveInDate != nil && u.AvailableFrom != nil {
			if u.AvailableFrom.After(*lead.MoveInDate) {
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// rank orders by absolute price distance from budget, then soonest
// availability (nil meaning available now), then unit ID for determinism.
func rank(units []Unit, budget *int) {
	sort.SliceStable(units, func(i, j int) bool {
		di, dj := priceDistance(units[i].Price, budget), priceDistance(units[j].Price, budget)
		if di != dj {
			return di < dj
		}
		ai, aj := availableAt(units[i]), availableAt(units[j])
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return units[i].ID.String() < units[j].ID.String()
	})
}

func priceDistance(price int, budget *int) int {
	if budget == nil {
		return price
	}
	d := *budget - price
	if d < 0 {
		return -d
	}
	return d
}

func availableAt(u Unit) time.Time {
	if u.AvailableFrom == nil {
		return time.Time{}
	}
	return *u.AvailableFrom
}
