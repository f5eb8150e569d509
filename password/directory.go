package password

import (
	"errors"
	"strings"
	"sync"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Directory is an in-memory username to password-hash table.
type Directory struct {
	hasher *Hasher

	mu    sync.RWMutex
	users map[string]string
}

// NewDirectory returns an empty Directory hashing with h.
func NewDirectory(h *Hasher) *Directory {
	return &Directory{hasher: h, users: make(map[string]string)}
}

// Add registers or replaces a user.
func (d *Directory) Add(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password required")
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.users[username] = hash
	d.mu.Unlock()
	return nil
}

// Authenticate verifies username and password.
func (d *Directory) Authenticate(username, password string) error {
	d.mu.RLock()
	hash, ok := d.users[strings.TrimSpace(username)]
	d.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}

	match, err := d.hasher.Verify(password, hash)
	if err != nil {
		return err
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}
