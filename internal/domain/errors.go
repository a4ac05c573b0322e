package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Login errors
	ErrInvalidUsername = errors.New("username or email is required")
	ErrInvalidPassword = errors.New("password is required")
	ErrInvalidServer   = errors.New("invalid server url")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrCASDisabled     = errors.New("cas authentication is disabled on the server")
	ErrInvalidOAuth    = errors.New("oauth credential token and secret are required")
	ErrNoCurrentServer = errors.New("no current server, log in first")

	// Server errors
	ErrServerUnreachable        = errors.New("server unreachable")
	ErrUnexpectedServerResponse = errors.New("unexpected server response")

	// Storage errors
	ErrServerNotFound  = errors.New("server not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrTokenNotFound   = errors.New("token not found")
	ErrPrefNotFound    = errors.New("preference not found")
)
