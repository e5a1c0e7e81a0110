// Package actor resolves the caller of a request (a human user holding a JWT
// or an agent holding an access token) and answers board access questions.
package actor

import (
	"context"
	"errors"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
)

// Type distinguishes users from agents.
type Type string

const (
	TypeUser  Type = "user"
	TypeAgent Type = "agent"
)

var (
	// ErrUnauthorized is returned when credentials are missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a resolved actor may not touch a
	// resource.
	ErrForbidden = errors.New("forbidden")
)

// Actor is the resolved caller of a request. Agents are bound to exactly
// one board; users may access every board of their organization.
type Actor struct {
	Type    Type   `json:"type"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	OrgID   string `json:"org_id"`
	BoardID string `json:"board_id,omitempty"`
}

// IsUser reports whether the actor is a human user.
func (a *Actor) IsUser() bool {
	return a != nil && a.Type == TypeUser
}

// ID returns the user or agent id.
func (a *Actor) ID() string {
	if a.Type == TypeAgent {
		return a.AgentID
	}
	return a.UserID
}

// CanAccessBoard reports whether a may read or write board.
func CanAccessBoard(a *Actor, board *mission.Board) bool {
	if a == nil || board == nil || a.OrgID != board.OrgID {
		return false
	}
	if a.Type == TypeAgent {
		return a.BoardID == board.ID
	}
	return a.Type == TypeUser
}

type contextKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(*Actor)
	return a, ok && a != nil
}
