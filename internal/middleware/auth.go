package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/audit"
	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/httputil"
	"github.com/friendsforever/server-go/internal/repository"
	"github.com/friendsforever/server-go/internal/util"
)

type contextKey string

const UserIDContextKey contextKey = "userID"

// GetUserID returns the authenticated user, or false outside AuthMiddleware.
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDContextKey).(int64)
	return id, ok
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

type AuthMiddleware struct {
	sessionRepo repository.AuthSessionRepository
}

func NewAuthMiddleware(sessionRepo repository.AuthSessionRepository) *AuthMiddleware {
	return &AuthMiddleware{sessionRepo: sessionRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		session, err := m.sessionRepo.FindValidByTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteError(w, apperrors.Database(err))
			return
		}

		if session == nil {
			log.Warn().
				Str("path", r.URL.Path).
				Str("token", util.MaskToken(token)).
				Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.InvalidToken("Invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), session.UserID)))
	})
}

// extractToken reads the bearer header, falling back to the token query
// parameter browsers must use for websocket upgrades.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
