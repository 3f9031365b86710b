package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// vaultKeyInfo binds derived keys to this file format.
const vaultKeyInfo = "guardian-agent/vault/v1"

// ErrVaultSealed is returned when the vault file cannot be decrypted with
// the configured secret.
var ErrVaultSealed = errors.New("vault file cannot be decrypted with the configured secret")

// fileDocument is the plaintext layout sealed into the vault file.
type fileDocument struct {
	Token      string `json:"token,omitempty"`
	Profile    []byte `json:"profile,omitempty"`
	OAuthState string `json:"oauth_state,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
}

// FileVault implements Vault as a single encrypted file on disk. The file is
// sealed with ChaCha20-Poly1305 under a key derived from the machine secret,
// so a token at rest is unreadable without the host's secret. Writes are
// atomic (temp file + rename).
type FileVault struct {
	mu   sync.Mutex
	path string
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	doc fileDocument
}

// NewFileVault opens (or creates) the vault file at path, deriving the
// encryption key from secret. An existing file is decrypted eagerly so a
// wrong secret fails at startup rather than mid-session.
func NewFileVault(path string, secret []byte) (*FileVault, error) {
	if len(secret) == 0 {
		return nil, errors.New("vault secret must not be empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(vaultKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	v := &FileVault{path: path, aead: aead}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *FileVault) load() error {
	data, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading vault file: %w", err)
	}
	if len(data) < chacha20poly1305.NonceSize {
		return ErrVaultSealed
	}

	nonce, ciphertext := data[:chacha20poly1305.NonceSize], data[chacha20poly1305.NonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrVaultSealed
	}
	if err := json.Unmarshal(plaintext, &v.doc); err != nil {
		return fmt.Errorf("decoding vault document: %w", err)
	}
	return nil
}

// flush seals the current document and writes it atomically.
// Callers hold v.mu.
func (v *FileVault) flush() error {
	plaintext, err := json.Marshal(v.doc)
	if err != nil {
		return fmt.Errorf("encoding vault document: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := v.aead.Seal(nil, nonce, plaintext, nil)

	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".vault-*")
	if err != nil {
		return fmt.Errorf("creating temp vault file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(append(nonce, sealed...))
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing vault file: %w", errors.Join(writeErr, closeErr))
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting vault file mode: %w", err)
	}
	if err := os.Rename(tmpName, v.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing vault file: %w", err)
	}
	return nil
}

// SetToken stores the session token.
func (v *FileVault) SetToken(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.Token = token
	return v.flush()
}

// Token returns the stored token, or "" when absent.
func (v *FileVault) Token() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc.Token, nil
}

// DeleteToken empties the token slot.
func (v *FileVault) DeleteToken() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.Token = ""
	return v.flush()
}

// SetProfile caches the serialized user profile.
func (v *FileVault) SetProfile(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.Profile = append([]byte(nil), data...)
	return v.flush()
}

// Profile returns the cached profile, or nil when absent.
func (v *FileVault) Profile() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc.Profile == nil {
		return nil, nil
	}
	return append([]byte(nil), v.doc.Profile...), nil
}

// SetOAuthState stores the CSRF scratch value.
func (v *FileVault) SetOAuthState(state string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.OAuthState = state
	return v.flush()
}

// OAuthState returns the CSRF scratch value, or "" when absent.
func (v *FileVault) OAuthState() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc.OAuthState, nil
}

// DeleteOAuthState removes the CSRF scratch value.
func (v *FileVault) DeleteOAuthState() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.OAuthState = ""
	return v.flush()
}

// SetReturnURL stores the pre-auth return URL.
func (v *FileVault) SetReturnURL(url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.ReturnURL = url
	return v.flush()
}

// ReturnURL returns the pre-auth return URL, or "" when absent.
func (v *FileVault) ReturnURL() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.doc.ReturnURL, nil
}

// DeleteReturnURL removes the return URL scratch value.
func (v *FileVault) DeleteReturnURL() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc.ReturnURL = ""
	return v.flush()
}

// Clear empties every slot.
func (v *FileVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc = fileDocument{}
	return v.flush()
}

// Verify interface compliance.
var _ Vault = (*FileVault)(nil)
