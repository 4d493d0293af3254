package models

import (
	"time"

	"github.com/lib/pq"
)

// Role represents a capability grant within the portal.
type Role string

const (
	RoleUser     Role = "USER"
	RoleReviewer Role = "REVIEWER"
	RoleAdmin    Role = "ADMIN"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if Role(r) == role {
			return true
		}
	}
	return false
}

// Actor is the authenticated identity passed into every domain operation.
// Services only ever check role membership on this value; they never reach
// into session state.
type Actor struct {
	ID    string
	Roles map[Role]struct{}
}

// NewActor builds an actor from an id and role list.
func NewActor(id string, roles ...Role) Actor {
	set := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return Actor{ID: id, Roles: set}
}

// HasRole reports role membership.
func (a Actor) HasRole(role Role) bool {
	_, ok := a.Roles[role]
	return ok
}

// IsAdmin is a convenience predicate for the most common check.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
