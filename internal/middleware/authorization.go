package middleware

import (
	"net/http"

	"storefront/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin, logger)
}

// RequireRole middleware ensures the caller's role satisfies required.
// It must run after AuthMiddleware.
func RequireRole(required domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				logger.Warn("Identity not found in context")
				RespondWithError(w, http.StatusUnauthorized, KindUnauthorized, "authentication required")
				return
			}

			if !identity.Role.Satisfies(required) {
				logger.Warn("User role not authorized",
					zap.String("user_id", identity.ID.String()),
					zap.String("role", string(identity.Role)),
					zap.String("required_role", string(required)),
				)
				RespondWithError(w, http.StatusForbidden, KindForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
