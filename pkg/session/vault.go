package session

// Vault is the persisted local state of the agent. Implementations must be
// safe for concurrent use. Absent values are returned as empty strings or
// nil byte slices with a nil error; errors are reserved for storage faults.
//
// The auth state controller is the only writer. Everything else reads
// through the controller's accessors.
type Vault interface {
	// SetToken stores the session token in the single token slot.
	SetToken(token string) error

	// Token returns the stored token, or "" when the slot is empty.
	Token() (string, error)

	// DeleteToken empties the token slot.
	DeleteToken() error

	// SetProfile caches the serialized user profile.
	SetProfile(data []byte) error

	// Profile returns the cached profile, or nil when absent.
	Profile() ([]byte, error)

	// SetOAuthState stores the one-time CSRF state for an in-flight
	// OAuth handshake.
	SetOAuthState(state string) error

	// OAuthState returns the stored CSRF state, or "" when absent.
	OAuthState() (string, error)

	// DeleteOAuthState removes the CSRF scratch value.
	DeleteOAuthState() error

	// SetReturnURL stores the pre-auth return URL.
	SetReturnURL(url string) error

	// ReturnURL returns the stored return URL, or "" when absent.
	ReturnURL() (string, error)

	// DeleteReturnURL removes the return URL scratch value.
	DeleteReturnURL() error

	// Clear empties every slot. Safe to call repeatedly.
	Clear() error
}
