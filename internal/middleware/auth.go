// Package middleware provides HTTP middleware for the studio API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/R3E-Network/studio_layer/internal/app/services/auth"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/internal/httputil"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

type (
	claimsKey      struct{}
	authFailureKey struct{}
)

// TokenQueryParam carries the session token on WebSocket upgrades, where
// browsers cannot set headers.
const TokenQueryParam = "access_token"

// AuthMiddleware verifies session tokens. Requests without a valid token pass
// through anonymously; RequireAuth and RequireRole gate protected routes and
// report why a presented token was rejected.
type AuthMiddleware struct {
	tokens *auth.Tokens
	logger *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokens *auth.Tokens, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{tokens: tokens, logger: log}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			m.rejectToken(w, r, next, err)
			return
		}
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Parse(raw)
		if err != nil {
			m.rejectToken(w, r, next, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = logger.WithUserID(ctx, claims.UserID())
		ctx = logger.WithRole(ctx, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if r.Method == http.MethodGet {
			return r.URL.Query().Get(TokenQueryParam), nil
		}
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.Unauthorized("Invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// rejectToken continues the request anonymously. Public routes such as login
// must keep working with a stale token in the browser.
func (m *AuthMiddleware) rejectToken(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")
	ctx := context.WithValue(r.Context(), authFailureKey{}, err)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// ClaimsFromContext returns the verified session of the request, if any.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// WithClaims attaches claims to ctx. Used by tests and internal callers.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, c)
	ctx = logger.WithUserID(ctx, c.UserID())
	return logger.WithRole(ctx, c.Role)
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			if err, rejected := r.Context().Value(authFailureKey{}).(error); rejected {
				httputil.WriteError(w, r, err)
				return
			}
			httputil.WriteError(w, r, apperrors.Unauthorized("Inicia sesión para continuar."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose session role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if _, ok := allowed[claims.Role]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("No tienes permiso para esta acción."))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
