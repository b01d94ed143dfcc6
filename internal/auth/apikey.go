package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyVerifier checks the key callers present against a bcrypt hash.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a verifier for a bcrypt hash.
func NewAPIKeyVerifier(hash string) (*APIKeyVerifier, error) {
	if hash == "" {
		return nil, errors.New("api key hash is empty")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &APIKeyVerifier{hash: []byte(hash)}, nil
}

// Verify returns nil when key matches the hash and ErrInvalidAPIKey
// otherwise.
func (v *APIKeyVerifier) Verify(key string) error {
	if key == "" {
		return ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey returns a bcrypt hash suitable for auth.api_key_hash.
func HashAPIKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
