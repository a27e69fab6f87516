package identity

import "errors"

// Client-caused failures.
var (
	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrInvalidCredentials    = errors.New("email or password is incorrect")
	ErrEmailNotVerified      = errors.New("email address has not been confirmed")
	ErrUserNotFound          = errors.New("user not found")
	ErrMissingCredential     = errors.New("no bearer token provided")
	ErrInvalidSession        = errors.New("invalid or malformed session")
	ErrSessionRevoked        = errors.New("password changed after session was issued")
	ErrForbidden             = errors.New("not allowed to perform this operation")
)

// Server-caused failures.
var (
	ErrMailDelivery       = errors.New("could not deliver email")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
