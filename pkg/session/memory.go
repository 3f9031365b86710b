package session

import "sync"

// MemoryVault implements Vault in process memory. Used in tests and for
// deployments where the host UI does not want tokens on disk.
type MemoryVault struct {
	mu         sync.RWMutex
	token      string
	profile    []byte
	oauthState string
	returnURL  string
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{}
}

// SetToken stores the session token.
func (v *MemoryVault) SetToken(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.token = token
	return nil
}

// Token returns the stored token, or "" when absent.
func (v *MemoryVault) Token() (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.token, nil
}

// DeleteToken empties the token slot.
func (v *MemoryVault) DeleteToken() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.token = ""
	return nil
}

// SetProfile caches the serialized user profile.
func (v *MemoryVault) SetProfile(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.profile = append([]byte(nil), data...)
	return nil
}

// Profile returns the cached profile, or nil when absent.
func (v *MemoryVault) Profile() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.profile == nil {
		return nil, nil
	}
	return append([]byte(nil), v.profile...), nil
}

// SetOAuthState stores the CSRF scratch value.
func (v *MemoryVault) SetOAuthState(state string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.oauthState = state
	return nil
}

// OAuthState returns the CSRF scratch value, or "" when absent.
func (v *MemoryVault) OAuthState() (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.oauthState, nil
}

// DeleteOAuthState removes the CSRF scratch value.
func (v *MemoryVault) DeleteOAuthState() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.oauthState = ""
	return nil
}

// SetReturnURL stores the pre-auth return URL.
func (v *MemoryVault) SetReturnURL(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.returnURL = url
	return nil
}

// ReturnURL returns the pre-auth return URL, or "" when absent.
func (v *MemoryVault) ReturnURL() (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.returnURL, nil
}

// DeleteReturnURL removes the return URL scratch value.
func (v *MemoryVault) DeleteReturnURL() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.returnURL = ""
	return nil
}

// Clear empties every slot.
func (v *MemoryVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.token = ""
	v.profile = nil
	v.oauthState = ""
	v.returnURL = ""
	return nil
}

// Verify interface compliance.
var _ Vault = (*MemoryVault)(nil)
