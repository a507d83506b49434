package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/pkg/directory"
)

// UserStore is the slice of the directory the auth service needs
type UserStore interface {
	Create(email, passwordHash, name string) (directory.User, error)
	ByEmail(email string) (directory.User, error)
}

// Service handles registration and login
type Service struct {
	users  UserStore
	tokens *JWTManager
	cost   int
	logger zerolog.Logger
}

// NewService creates an auth service
func NewService(users UserStore, tokens *JWTManager, cost int, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   cost,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Tokens exposes the token manager for verification
func (s *Service) Tokens() *JWTManager {
	return s.tokens
}

// Register creates a user with a hashed password
func (s *Service) Register(email, password, name string) (directory.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return directory.User{}, ErrMissingCredentials
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return directory.User{}, err
	}

	user, err := s.users.Create(email, hash, name)
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both report ErrInvalidCredentials.
func (s *Service) Login(email, password string) (string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", ErrMissingCredentials
	}

	user, err := s.users.ByEmail(email)
	if errors.Is(err, directory.ErrUserNotFound) {
		s.logger.Debug().Msg("Login for unknown email")
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Debug().Str("user_id", user.ID.String()).Msg("Login with wrong password")
		return "", err
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", user.ID.String()).Msg("User logged in")
	return token, nil
}
