package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier resolves a bearer token to an identity
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// AuthMiddleware verifies the bearer token and stores the caller's identity
// in the request context. Every failure is a 401. A request already
// identified by OptionalAuthMiddleware passes straight through.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, KindUnauthorized, "missing authorization header")
				return
			}

			identity, ok := authenticate(w, authHeader, verifier, logger)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuthMiddleware lets anonymous requests through and identifies the
// rest. A request that presents a credential gets a 401 when it is invalid,
// on public routes as well.
func OptionalAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := authenticate(w, authHeader, verifier, logger)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// authenticate resolves an Authorization header, writing the 401 itself on failure
func authenticate(w http.ResponseWriter, authHeader string, verifier TokenVerifier, logger *zap.Logger) (domain.Identity, bool) {
	tokenString, ok := bearerToken(authHeader)
	if !ok {
		logger.Debug("Invalid authorization header format")
		RespondWithError(w, http.StatusUnauthorized, KindUnauthorized, "invalid authorization header format")
		return domain.Identity{}, false
	}

	identity, err := verifier.Verify(tokenString)
	if err != nil {
		logger.Debug("Token validation failed", zap.Error(err))
		RespondWithError(w, http.StatusUnauthorized, KindUnauthorized, "invalid or expired token")
		return domain.Identity{}, false
	}

	logger.Debug("User authenticated",
		zap.String("user_id", identity.ID.String()),
		zap.String("role", string(identity.Role)),
	)
	return identity, true
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the authenticated identity from request context
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return identity.ID.String(), true
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
