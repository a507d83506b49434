package directory

import (
	"errors"
	"strings"
	"time"

	"github.com/harun/beacon/pkg/location"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup key
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when registering an email that is already taken
	ErrUserExists = errors.New("user already exists")
)

// User is one registered account. PasswordHash holds a bcrypt hash and is
// stored under "password" to stay compatible with existing users files.
type User struct {
	ID           location.Identity `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"password"`
	Name         string            `json:"name"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Profile is the public view of a user
type Profile struct {
	ID    location.Identity `json:"id"`
	Email string            `json:"email"`
	Name  string            `json:"name"`
}

// Profile strips the password hash
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name}
}

// defaultName derives a display name from the local part of an email
func defaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
