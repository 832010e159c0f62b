// Package domain defines the persistent entities, change primitives, and
// error types shared across nuggetcore.
package domain

import "time"

// DefaultAllotment is the nugget pool every team starts with.
const DefaultAllotment = 2000

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team tracks a shared nugget pool. Remaining is a maintained field: after
// every committed user mutation it equals Allotment minus the sum of the
// team's user counts.
type Team struct {
	Base
	Allotment int `json:"allotment"`
	Remaining int `json:"remaining"`
}

// NewTeam returns a team with the default allotment and a full pool.
func NewTeam(id string) Team {
	return Team{
		Base:      Base{ID: id},
		Allotment: DefaultAllotment,
		Remaining: DefaultAllotment,
	}
}

// User is an individual counter bound to a team. ID doubles as the opaque
// session token handed to the client at join time. Count never goes below
// zero; decrements are clamped per step.
type User struct {
	Base
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}
