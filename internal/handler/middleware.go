package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"tcees-validator/internal/domain"
	apperrors "tcees-validator/pkg/errors"

	"github.com/google/uuid"
)

// SecretHeader carries the shared secret
const SecretHeader = "X-API-Secret"

// APISecretMiddleware checks the shared-secret header
type APISecretMiddleware struct {
	secret string
	logger domain.Logger
}

// NewAPISecretMiddleware creates the middleware. An empty secret lets every request through.
func NewAPISecretMiddleware(secret string, logger domain.Logger) *APISecretMiddleware {
	return &APISecretMiddleware{secret: secret, logger: logger}
}

// Middleware rejects requests whose X-API-Secret does not match
func (m *APISecretMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret != "" {
			got := r.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(m.secret)) != 1 {
				m.logger.Warn("Rejected request with invalid secret",
					"request_id", requestID(r),
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				writeAppError(w, apperrors.NewUnauthorizedError("Não autorizado.").WithCode(domain.CodeAuth))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestIDMiddleware tags every request with an id and logs its outcome
func RequestIDMiddleware(logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			ctx := context.WithValue(r.Context(), requestIDContextKey, id)
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("Request handled",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed", time.Since(start).String(),
			)
		})
	}
}
