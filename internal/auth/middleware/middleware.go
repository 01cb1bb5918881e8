package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clarity-ai/backend/internal/auth"
	"github.com/clarity-ai/backend/internal/logger"
	"github.com/clarity-ai/backend/internal/utils"
	"go.uber.org/zap"
)

// authContextKey is the key type for the context
type authContextKey string

// AuthContextKey is used to store auth info in the request context
const AuthContextKey authContextKey = "auth"

const bearerPrefix = "Bearer "

// AuthInfo is the validated identity stored in the request context. It is
// routing information only; handlers doing sensitive operations re-prove the
// password through the service.
type AuthInfo struct {
	UserID string
	Email  string
	Token  string
}

// Authenticate validates the bearer token (live check first, offline decode
// as fallback) and rejects the request with 401 when both fail.
func Authenticate(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				utils.WriteHTTPError(w, utils.Unauthenticated("Unauthorized"))
				return
			}

			identity, err := svc.Identify(r.Context(), token)
			if err != nil {
				logger.Debug("bearer token rejected", zap.Error(err))
				utils.WriteHTTPError(w, utils.Unauthenticated("Unauthorized"))
				return
			}

			ctx := context.WithValue(r.Context(), AuthContextKey, &AuthInfo{
				UserID: identity.ID,
				Email:  identity.Email,
				Token:  token,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the identity stored by Authenticate.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(AuthContextKey).(*AuthInfo)
	return info, ok
}

// extractToken extracts the Bearer token from the Authorization header.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	return ""
}
