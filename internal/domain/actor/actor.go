// Package actor models the user identity the transfer core consumes from the
// user-management collaborator: role, activity flag and suspension records.
package actor

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// SuspensionStatus is the lifecycle state of a suspension record
type SuspensionStatus string

const (
	SuspensionActive  SuspensionStatus = "active"
	SuspensionLifted  SuspensionStatus = "lifted"
	SuspensionExpired SuspensionStatus = "expired"
)

// Suspension blocks a user from moving money while it is in force
type Suspension struct {
	ID        int64            `json:"id"`
	Status    SuspensionStatus `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"` // nil means indefinite
}

// InForce reports whether the suspension applies at now
func (s Suspension) InForce(now time.Time) bool {
	if s.Status != SuspensionActive {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Actor is a user as seen by the transfer core
type Actor struct {
	UserID      int64        `json:"user_id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Role        Role         `json:"role"`
	IsActive    bool         `json:"is_active"`
	Suspensions []Suspension `json:"suspensions,omitempty"`
}

// IsSuspended reports whether any suspension is in force at now
func (a *Actor) IsSuspended(now time.Time) bool {
	for _, s := range a.Suspensions {
		if s.InForce(now) {
			return true
		}
	}
	return false
}

// Eligible is the gate for sending or receiving funds
func (a *Actor) Eligible(now time.Time) bool {
	return a.IsActive && !a.IsSuspended(now)
}

// Capabilities resolves the actor's role once into a capability set
func (a *Actor) Capabilities() Capabilities {
	return CapabilitiesOf(a.Role)
}

// Directory reads actors from the user-management store. Results are never cached.
type Directory interface {
	GetByID(ctx context.Context, userID int64) (*Actor, error)
	GetByEmail(ctx context.Context, email string) (*Actor, error)
}

// MatchEmail picks the one actor an email resolves to among candidates that match it
// case-insensitively. An exact match wins. Otherwise a single candidate is returned,
// and several are ambiguous, so none is.
func MatchEmail(candidates []*Actor, email string) *Actor {
	var exact, folded []*Actor
	for _, c := range candidates {
		if !strings.EqualFold(c.Email, email) {
			continue
		}
		folded = append(folded, c)
		if c.Email == email {
			exact = append(exact, c)
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0]
	case len(exact) == 0 && len(folded) == 1:
		return folded[0]
	}
	return nil
}

// ErrActorNotFound indicates an unknown user. An empty target matches any.
type ErrActorNotFound struct {
	UserID int64
	Email  string
}

func (e ErrActorNotFound) Error() string {
	if e.Email != "" {
		return "user not found: " + e.Email
	}
	return "user not found: " + strconv.FormatInt(e.UserID, 10)
}

// Is implements the errors.Is interface for ErrActorNotFound
func (e ErrActorNotFound) Is(target error) bool {
	t, ok := target.(ErrActorNotFound)
	if !ok {
		return false
	}
	if t.UserID != 0 && t.UserID != e.UserID {
		return false
	}
	return t.Email == "" || t.Email == e.Email
}
