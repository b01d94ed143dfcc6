package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newSigner(t *testing.T, now func() time.Time) *auth.CallbackSigner {
	t.Helper()
	s, err := auth.NewCallbackSigner(testSecret, "https://research.example.com/", time.Hour, auth.WithTimeFunc(now))
	require.NoError(t, err)
	return s
}

func TestCallbackSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newSigner(t, time.Now)
	taskID := uuid.New()

	url, token, err := signer.CallbackFor(taskID)
	require.NoError(t, err)
	assert.Equal(t, "https://research.example.com/api/callbacks/tasks/"+taskID.String(), url)
	assert.NoError(t, signer.Verify(context.Background(), token, taskID))
}

func TestCallbackSignerRejections(t *testing.T) {
	t.Parallel()

	now := time.Now()
	signer := newSigner(t, func() time.Time { return now })
	taskID := uuid.New()
	token, err := signer.Sign(taskID)
	require.NoError(t, err)

	t.Run("other task", func(t *testing.T) {
		err := signer.Verify(context.Background(), token, uuid.New())
		assert.ErrorIs(t, err, auth.ErrTokenSubjectMismatch)
	})

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, signer.Verify(context.Background(), "", taskID), auth.ErrMissingToken)
	})

	t.Run("malformed", func(t *testing.T) {
		assert.ErrorIs(t, signer.Verify(context.Background(), "not.a.jwt", taskID), auth.ErrInvalidToken)
	})

	t.Run("tampered signature", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		flip := "A"
		if strings.HasPrefix(parts[2], "A") {
			flip = "B"
		}
		tampered := parts[0] + "." + parts[1] + "." + flip + parts[2][1:]
		assert.ErrorIs(t, signer.Verify(context.Background(), tampered, taskID), auth.ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := auth.NewCallbackSigner(strings.Repeat("z", 32), "https://research.example.com", time.Hour)
		require.NoError(t, err)
		assert.ErrorIs(t, other.Verify(context.Background(), token, taskID), auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newSigner(t, func() time.Time { return now.Add(2 * time.Hour) })
		assert.ErrorIs(t, later.Verify(context.Background(), token, taskID), auth.ErrExpiredToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   taskID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		assert.ErrorIs(t, signer.Verify(context.Background(), foreign, taskID), auth.ErrInvalidToken)
	})

	t.Run("no expiry", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Issuer: auth.CallbackIssuer, Subject: taskID.String()}
		forever, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		assert.ErrorIs(t, signer.Verify(context.Background(), forever, taskID), auth.ErrInvalidToken)
	})
}

func TestNewCallbackSignerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		secret   string
		baseURL  string
		lifetime time.Duration
	}{
		{"short secret", "short", "https://a.example.com", time.Hour},
		{"zero lifetime", testSecret, "https://a.example.com", 0},
		{"relative base url", testSecret, "/callbacks", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewCallbackSigner(tt.secret, tt.baseURL, tt.lifetime)
			assert.Error(t, err)
		})
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashAPIKey("caller-key", bcrypt.MinCost)
	require.NoError(t, err)

	v, err := auth.NewAPIKeyVerifier(hash)
	require.NoError(t, err)

	assert.NoError(t, v.Verify("caller-key"))
	assert.ErrorIs(t, v.Verify("other-key"), auth.ErrInvalidAPIKey)
	assert.ErrorIs(t, v.Verify(""), auth.ErrInvalidAPIKey)

	_, err = auth.NewAPIKeyVerifier("")
	assert.Error(t, err)
	_, err = auth.NewAPIKeyVerifier("not-a-bcrypt-hash")
	assert.Error(t, err)
}
