// Package middleware provides HTTP middleware for the API surface.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/retailcore/commerce_layer/internal/app/services/auth"
	"github.com/retailcore/commerce_layer/internal/errors"
	"github.com/retailcore/commerce_layer/internal/httputil"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware authenticates requests with a bearer token.
type AuthMiddleware struct {
	verifier  TokenVerifier
	log       *logger.Logger
	skipPaths map[string]bool
	skipFunc  func(r *http.Request) bool
}

// NewAuthMiddleware creates an authentication middleware. Requests to
// skipPaths pass through unauthenticated; skipFunc, when set, can exempt
// dynamic paths such as webhook routes.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger, skipPaths []string, skipFunc func(r *http.Request) bool) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("middleware")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{verifier: verifier, log: log, skipPaths: skip, skipFunc: skipFunc}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || (m.skipFunc != nil && m.skipFunc(r)) {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			m.respondError(w, r, errors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.log.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}
	httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
}

// WithClaims stores verified claims in the context.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts verified claims, or nil when the request was not
// authenticated.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// RequireRole rejects authenticated requests whose role is not in the allowed
// set. Unauthenticated requests are rejected outright.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]bool, len(allowed))
	for _, role := range allowed {
		set[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httputil.Unauthorized(w, "")
				return
			}
			if !set[claims.Role] {
				se := errors.Forbidden("insufficient role")
				httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
