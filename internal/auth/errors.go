package auth

import "errors"

// Common authentication errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid callback token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("callback token has expired")

	// ErrMissingToken indicates a token was expected but not provided
	ErrMissingToken = errors.New("callback token is missing")

	// ErrTokenSubjectMismatch indicates a valid token issued for another task
	ErrTokenSubjectMismatch = errors.New("callback token was issued for a different task")

	// ErrInvalidAPIKey indicates the caller's API key does not match
	ErrInvalidAPIKey = errors.New("invalid api key")
)
