package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

type authContextKey struct{}

// AuthMiddleware authenticates the bearer token and stores the caller in the
// request context. Failures get a 401 JSON error without detail about why.
func AuthMiddleware(provider ports.AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, err := provider.Authenticate(r.Context(), bearerToken(r))
			if err != nil || auth == nil || auth.UserID == "" {
				AddError(r.Context(), err)
				WriteError(w, domain.ErrAuthentication("Authentication required"))
				return
			}

			AddLogField(r.Context(), "user_id", auth.UserID)
			ctx := context.WithValue(r.Context(), authContextKey{}, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// A bare header value without the scheme is accepted as well.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// GetAuth retrieves the authenticated caller from context.
// Returns nil if AuthMiddleware did not run.
func GetAuth(ctx context.Context) *ports.AuthContext {
	if a, ok := ctx.Value(authContextKey{}).(*ports.AuthContext); ok {
		return a
	}
	return nil
}

// WithAuth returns a context carrying auth. Used by tests and embedders that
// authenticate upstream.
func WithAuth(ctx context.Context, auth *ports.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}
