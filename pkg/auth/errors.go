package auth

import (
	"errors"
	"fmt"
)

// ErrAuthFailure is the category every credential error belongs to
var ErrAuthFailure = errors.New("authentication failed")

var (
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrAuthFailure)
	ErrExpiredToken       = fmt.Errorf("%w: token expired", ErrAuthFailure)
	ErrMissingClaim       = fmt.Errorf("%w: missing required claim", ErrAuthFailure)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthFailure)
)

// ErrMissingCredentials is a malformed request rather than a failed check
var ErrMissingCredentials = errors.New("email and password required")
