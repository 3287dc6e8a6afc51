package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/adakita/loan-service/internal/auth"
	"github.com/adakita/loan-service/internal/config"
	"github.com/adakita/loan-service/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	roleKey   contextKey = "role"
	userIDKey contextKey = "userID"
)

// Identity resolves the caller's role and user id from the Authorization
// header and stores them in the request context. Requests without a valid
// bearer token carry the unauthenticated sentinel role; authorization
// decisions belong to the handlers, so this middleware never rejects.
func Identity(cfg *config.Config, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := models.RoleUnauthenticated
			var userID int64

			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				claims, err := auth.ParseToken(cfg.JWTSecret, token)
				if err != nil {
					log.Debugf("Rejected bearer token: %v", err)
				} else {
					role = claims.Role
					if id, err := claims.UserID(); err == nil {
						userID = id
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, userID)))
		})
	}
}

// WithIdentity stores the resolved role and user id in the context
func WithIdentity(ctx context.Context, role string, userID int64) context.Context {
	ctx = context.WithValue(ctx, roleKey, role)
	return context.WithValue(ctx, userIDKey, userID)
}

// RoleFromContext returns the caller's role, or the unauthenticated
// sentinel when no identity was resolved
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok && role != "" {
		return role
	}
	return models.RoleUnauthenticated
}

// UserIDFromContext returns the caller's user id, zero when unknown
func UserIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		return id
	}
	return 0
}
