package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/beacon/pkg/location"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Directory is the file-backed user registry. Every mutation rewrites the
// users file; external edits are picked up through Reload.
type Directory struct {
	mu    sync.RWMutex
	path  string
	users []User

	logger zerolog.Logger
	now    func() time.Time
}

// Open loads the users file at path. A missing file yields an empty
// directory; an unreadable one is logged and also starts empty.
func Open(path string, logger zerolog.Logger) (*Directory, error) {
	d := &Directory{
		path:   path,
		logger: logger.With().Str("component", "directory").Logger(),
		now:    time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create users directory: %w", err)
	}

	if err := d.Reload(); err != nil {
		d.logger.Warn().Err(err).Str("path", path).Msg("Failed to load users file, starting empty")
	}
	return d, nil
}

// Path returns the backing file path
func (d *Directory) Path() string {
	return d.path
}

// Reload replaces the in-memory users with the file contents
func (d *Directory) Reload() error {
	users, err := readUsers(d.path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()

	d.logger.Debug().Int("users", len(users)).Msg("Users loaded")
	return nil
}

func readUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	return users, nil
}

// save writes the users file atomically. Caller must hold d.mu.
func (d *Directory) save() error {
	data, err := json.MarshalIndent(d.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace users file: %w", err)
	}
	return nil
}

// Create registers a user. name defaults to the local part of the email.
func (d *Directory) Create(email, passwordHash, name string) (User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName(email)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if slices.ContainsFunc(d.users, func(u User) bool { return u.Email == email }) {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, email)
	}

	user := User{
		ID:           location.Identity(uuid.New().String()),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    d.now().UTC(),
	}
	d.users = append(d.users, user)

	if err := d.save(); err != nil {
		d.users = d.users[:len(d.users)-1]
		return User{}, err
	}

	d.logger.Info().Str("user_id", user.ID.String()).Msg("User registered")
	return user, nil
}

// ByEmail finds a user by exact email
func (d *Directory) ByEmail(email string) (User, error) {
	email = strings.TrimSpace(email)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
}

// ByID finds a user by identity
func (d *Directory) ByID(id location.Identity) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
}

// DisplayName resolves the current name for id
func (d *Directory) DisplayName(id location.Identity) (string, error) {
	u, err := d.ByID(id)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// Rename changes a user's display name. An empty name leaves it unchanged.
func (d *Directory) Rename(id location.Identity, name string) (User, error) {
	name = strings.TrimSpace(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if name == "" || name == d.users[i].Name {
		return d.users[i], nil
	}

	previous := d.users[i].Name
	d.users[i].Name = name
	if err := d.save(); err != nil {
		d.users[i].Name = previous
		return User{}, err
	}
	return d.users[i], nil
}

// List returns every user
func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.users)
}

// Others returns every user except id
func (d *Directory) Others(id location.Identity) []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

// Len returns the number of users
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
