package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"changeTracker/internal/auth"
	"changeTracker/internal/logger"
	"changeTracker/internal/models/user"

	"go.uber.org/zap"
)

const UserKey contextKey = "current_user"

// SessionResolver превращает утверждения токена в профиль пользователя
type SessionResolver interface {
	ResolveSession(ctx context.Context, claims *auth.Claims) (*user.User, error)
}

// Auth проверяет Bearer-токен и кладёт профиль в контекст запроса
func Auth(tm *auth.TokenManager, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, http.StatusUnauthorized, "требуется заголовок Authorization")
				return
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeAuthError(w, http.StatusUnauthorized, "неверный формат Authorization")
				return
			}

			claims, err := tm.Parse(parts[1])
			if err != nil {
				logger.Warn("HTTP: Недействительный токен",
					zap.String("client_ip", r.RemoteAddr))
				writeAuthError(w, http.StatusUnauthorized, "недействительный токен")
				return
			}

			u, err := resolver.ResolveSession(r.Context(), claims)
			if err != nil {
				logger.Warn("HTTP: Сессия отклонена",
					zap.String("user_id", claims.UserID.String()),
					zap.Error(err))
				writeAuthError(w, http.StatusForbidden, "аккаунт не допущен к системе")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCurrentUser достаёт профиль из контекста; nil вне Auth-цепочки
func GetCurrentUser(ctx context.Context) *user.User {
	if u, ok := ctx.Value(UserKey).(*user.User); ok {
		return u
	}
	return nil
}

func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetCurrentUser(r.Context())
		if u == nil || !u.IsManager() {
			writeAuthError(w, http.StatusForbidden, "операция доступна только менеджеру")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireSuperUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetCurrentUser(r.Context())
		if u == nil || !u.IsSuperUser() {
			writeAuthError(w, http.StatusForbidden, "операция доступна только супер-пользователю")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": message})
}
