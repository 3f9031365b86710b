// Package session provides the session model and the persisted Vault for the
// GUARDIAN agent. The Vault is the single local persistence surface: one
// token slot, a cached user profile, and two short-lived OAuth scratch values
// (CSRF state and the pre-auth return URL). Only the auth state controller
// writes to it.
package session

import "time"

// Session represents an authenticated backend session held by the agent.
type Session struct {
	// Token is the opaque bearer credential.
	Token string

	// UserID is the owning identity. A non-empty Token always carries a
	// non-empty UserID while the session is live.
	UserID string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// RefreshedAt is the time of the most recent successful refresh.
	RefreshedAt time.Time

	// ExpiresAt is when the backend will reject the token.
	ExpiresAt time.Time
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// TimeUntilExpiry returns the remaining lifetime. Negative when expired,
// zero when no expiry is known.
func (s *Session) TimeUntilExpiry() time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(s.ExpiresAt)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
