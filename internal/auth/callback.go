// Package auth issues and verifies the per-task callback tokens remote
// services present when posting results, and checks the caller API key.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
)

// CallbackIssuer is the JWT issuer claim on callback tokens.
const CallbackIssuer = "research-ai-platform"

// CallbackPath is the route remote services post results to, relative to
// the public base URL. The {id} segment is the task id.
const CallbackPath = "/api/callbacks/tasks/"

// minSecretLength matches the configuration rule for callback_secret.
const minSecretLength = 32

// CallbackSigner signs and verifies callback tokens with HMAC-SHA256. The
// token subject is the task id, so a token only authorizes results for the
// task it was issued with.
type CallbackSigner struct {
	signingKey []byte
	baseURL    string
	lifetime   time.Duration
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration
}

// SignerOption configures a CallbackSigner.
type SignerOption func(*CallbackSigner)

// WithTimeFunc replaces the signer's clock.
func WithTimeFunc(fn func() time.Time) SignerOption {
	return func(s *CallbackSigner) { s.timeFunc = fn }
}

// NewCallbackSigner creates a CallbackSigner. baseURL is the externally
// reachable address of this service.
func NewCallbackSigner(secret, baseURL string, lifetime time.Duration, opts ...SignerOption) (*CallbackSigner, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("callback secret must be at least %d characters", minSecretLength)
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("callback token lifetime must be positive")
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("callback base url %q is not absolute", baseURL)
		}
	}

	s := &CallbackSigner{
		signingKey: []byte(secret),
		baseURL:    strings.TrimRight(baseURL, "/"),
		lifetime:   lifetime,
		timeFunc:   time.Now,
		clockSkew:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CallbackFor returns the callback URL and a fresh token for the task.
func (s *CallbackSigner) CallbackFor(taskID uuid.UUID) (string, string, error) {
	token, err := s.Sign(taskID)
	if err != nil {
		return "", "", err
	}
	return s.baseURL + CallbackPath + taskID.String(), token, nil
}

// Sign creates a token whose subject is the task id.
func (s *CallbackSigner) Sign(taskID uuid.UUID) (string, error) {
	now := s.timeFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    CallbackIssuer,
		Subject:   taskID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		ID:        uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback token with HMAC-SHA256: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, issuer and expiry and that it was
// issued for taskID.
func (s *CallbackSigner) Verify(ctx context.Context, tokenString string, taskID uuid.UUID) error {
	log := logger.FromContext(ctx)
	if tokenString == "" {
		return ErrMissingToken
	}

	now := s.timeFunc()
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(CallbackIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("callback token expired", "task_id", taskID)
			return ErrExpiredToken
		}
		log.Debug("callback token rejected",
			"task_id", taskID,
			"error", err)
		return ErrInvalidToken
	}

	if claims.Subject != taskID.String() {
		log.Warn("callback token subject mismatch",
			"task_id", taskID,
			"subject", claims.Subject)
		return ErrTokenSubjectMismatch
	}
	return nil
}
