package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kaushalacts/research-ai-platform/internal/api/shared"
	"github.com/kaushalacts/research-ai-platform/internal/auth"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

// KeyVerifier checks a caller API key.
type KeyVerifier interface {
	Verify(key string) error
}

// TokenVerifier checks a callback token against the task it targets.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, taskID uuid.UUID) error
}

// RequireAPIKey rejects requests whose X-API-Key does not verify. A nil
// verifier disables the check.
func RequireAPIKey(verifier KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "API key required")
				return
			}
			if err := verifier.Verify(key); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid API key", err,
					shared.WithElevatedLogLevel())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCallbackToken validates the bearer token on a callback route. The
// token must have been issued for the task named by the URL parameter
// param, so it has to run after chi has matched the route.
func RequireCallbackToken(verifier TokenVerifier, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
				return
			}

			taskID, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
				return
			}

			err = verifier.Verify(r.Context(), parts[1], taskID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrMissingToken),
				errors.Is(err, auth.ErrTokenSubjectMismatch):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err,
					shared.WithElevatedLogLevel())
			default:
				logger.FromContext(r.Context()).Error("failed to validate callback token",
					slog.String("error", redact.Error(err)))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
		})
	}
}
