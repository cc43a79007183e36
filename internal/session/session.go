package session

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/dunamismax/jobboard/internal/id"
)

const (
	CookieName = "admin_session"
	DefaultTTL = 12 * time.Hour
)

// Store keeps admin session tokens. Valid must treat unknown and expired tokens
// the same way.
type Store interface {
	Create(ctx context.Context, subject string) (Session, error)
	Valid(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

type Session struct {
	Token     string    `json:"token"`
	Subject   string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CredentialsMatch compares a login attempt against the configured admin
// credentials in constant time. Empty configured credentials never match.
func CredentialsMatch(wantUser, wantPass, gotUser, gotPass string) bool {
	if wantUser == "" || wantPass == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(wantUser), []byte(gotUser))
	passOK := subtle.ConstantTimeCompare([]byte(wantPass), []byte(gotPass))
	return userOK&passOK == 1
}

func newSession(subject string, ttl time.Duration, now time.Time) (Session, error) {
	token, err := id.Token(32)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Subject: subject, ExpiresAt: now.Add(ttl).UTC()}, nil
}
