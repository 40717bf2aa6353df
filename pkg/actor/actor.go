// Package actor identifies the user performing an action and carries the
// role/campus pair every operation consults for authorization.
//
// Policy is deliberately explicit: services receive the actor as a parameter
// (via context populated by middleware) instead of querying ambient session
// state, so any role/campus combination can be supplied in tests.
package actor

import (
	"context"
	"fmt"
)

// Roles known to the system.
const (
	RoleAdmin            = "admin"
	RoleNurse            = "nurse"
	RoleInventoryManager = "inventory_manager"
	RoleAccountManager   = "account_manager"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleNurse, RoleInventoryManager, RoleAccountManager:
		return true
	}
	return false
}

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is the actor's display name
	Name string `json:"name"`

	// Email is the actor's email address
	Email string `json:"email"`

	// Role is one of the Role* constants
	Role string `json:"role"`

	// Campus is the actor's home campus
	Campus string `json:"campus"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s@%s)", a.Name, a.Role, a.Campus)
}

// IsAdmin reports whether the actor has the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// CanViewInventory reports whether the actor may read inventory data.
func (a *Actor) CanViewInventory() bool {
	if a == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin, RoleNurse, RoleInventoryManager:
		return true
	}
	return false
}

// CanManageInventory reports whether the actor may create or correct
// medicines and batches.
func (a *Actor) CanManageInventory() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleInventoryManager
}

// CanDistribute reports whether the actor may create distributions.
func (a *Actor) CanDistribute() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleInventoryManager
}

// CanGenerateReports reports whether the actor may generate, edit and submit
// monthly inventory reports for their campus.
func (a *Actor) CanGenerateReports() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleNurse
}

// CanCompileReports reports whether the actor may run the cross-campus
// compilation and its exports.
func (a *Actor) CanCompileReports() bool {
	return a.IsAdmin()
}

// CanManageRecords reports whether the actor may manage clinical records.
func (a *Actor) CanManageRecords() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleNurse
}

// CanManageUsers reports whether the actor may manage user accounts.
func (a *Actor) CanManageUsers() bool {
	if a == nil {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleAccountManager
}

// CampusScope returns the campus filter the actor's reads are restricted to.
// Admins see all campuses (empty scope); everyone else sees their own.
func (a *Actor) CampusScope() string {
	if a == nil || a.IsAdmin() {
		return ""
	}
	return a.Campus
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}
