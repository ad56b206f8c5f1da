// Package tokenstore persists the client session between runs.
//
// A store holds one opaque bearer token plus an "authenticated" flag. Both
// are written by a single Save and removed by a single Clear, so token
// presence and the flag never disagree.
package tokenstore

import (
	"context"
	"time"
)

const (
	// TokenKey is the well-known key of the bearer token
	TokenKey = "token"
	// AuthFlagKey is the key of the serialized authenticated flag
	AuthFlagKey = "auth-storage"
)

// Session is the persisted client credential
type Session struct {
	AccessToken   string    `json:"token"`
	TokenType     string    `json:"token_type,omitempty"`
	Authenticated bool      `json:"-"`
	SavedAt       time.Time `json:"saved_at"`
}

// authFlag is the serialized form of the authenticated flag
type authFlag struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

// Store persists a Session
type Store interface {
	// Load returns the stored session, or nil when none is stored
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

// AccessToken returns the stored bearer token, or "" when logged out
func AccessToken(ctx context.Context, s Store) (string, error) {
	sess, err := s.Load(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func normalize(session Session) Session {
	session.Authenticated = session.AccessToken != ""
	if session.SavedAt.IsZero() {
		session.SavedAt = time.Now().UTC()
	}
	return session
}
