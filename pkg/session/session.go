// Package session mirrors identity provider sign-in state into a durable
// local Session and decides which views a visitor may open.
//
// The provider is the source of truth. Gate listens to its pushes and keeps
// a copy in a state.Store so the flag survives restarts; sign-out always
// clears the copy, whatever the provider answers.
package session

import (
	"errors"
	"time"

	"github.com/goliatone/go-drivalyze"
)

// Identity is the signed-in user as reported by the provider.
type Identity = drivalyze.Identity

// Session is the locally persisted view of the sign-in state.
type Session struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	UserID          string    `json:"user_id,omitempty"`
	UserEmail       string    `json:"user_email,omitempty"`
	DisplayName     string    `json:"display_name,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Identity returns the cached identity, zero when signed out.
func (s Session) Identity() Identity {
	return Identity{UserID: s.UserID, Email: s.UserEmail, DisplayName: s.DisplayName}
}

// Validate rejects authenticated sessions without a user and signed-out
// sessions that still carry identity fields.
func (s Session) Validate() error {
	if s.IsAuthenticated && s.UserID == "" {
		return errors.New("session: authenticated session requires a user id")
	}
	if !s.IsAuthenticated && (s.UserID != "" || s.UserEmail != "" || s.DisplayName != "") {
		return errors.New("session: signed-out session must not carry identity")
	}
	return nil
}

func signedIn(identity Identity, now time.Time) Session {
	return Session{
		IsAuthenticated: true,
		UserID:          identity.UserID,
		UserEmail:       identity.Email,
		DisplayName:     identity.DisplayName,
		UpdatedAt:       now.UTC(),
	}
}

func signedOut(now time.Time) Session {
	return Session{UpdatedAt: now.UTC()}
}
