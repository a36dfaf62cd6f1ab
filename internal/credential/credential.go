// Package credential manages the rotating remote access token: load,
// proactive refresh before expiry, and propagation to the remote
// session.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrNoCredential is returned when no credential has been stored yet.
var ErrNoCredential = errors.New("no stored credential")

// Credential is the process-wide access token with its expiry.
type Credential struct {
	Value        string    `json:"value"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// ExpiresWithin reports whether the credential expires inside margin.
// An absent expiry counts as expired.
func (c Credential) ExpiresWithin(margin time.Duration) bool {
	if c.Value == "" || c.Expiry.IsZero() {
		return true
	}
	return time.Until(c.Expiry) <= margin
}

// Store persists the credential across restarts.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
}

// FileStore keeps the credential in a JSON file with owner-only
// permissions.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, ErrNoCredential
		}
		return Credential{}, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func (s *FileStore) Save(ctx context.Context, cred Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a torn credential file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
