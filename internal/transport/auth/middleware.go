package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance_tracker/internal/repository"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// TokenMiddleware resolves the bearer token (or ?token=) to a user id and
// stores it in the request context. OPTIONS requests pass through untouched.
func TokenMiddleware(tokenRepo TokenRepo, logger *logrus.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var pat *repository.PersonalAccessToken
			for _, src := range []struct{ name, token string }{
				{"header", bearer(r)},
				{"query", r.URL.Query().Get("token")},
			} {
				if src.token == "" {
					continue
				}
				p, err := tokenRepo.FindTokenByPlainToken(r.Context(), src.token)
				if err != nil {
					logger.Printf("[AUTH] token lookup (%s) error: %v", src.name, err)
					continue
				}
				pat = p
				break
			}

			if pat == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			uid := strconv.FormatInt(pat.UserID, 10)
			ctx := context.WithValue(r.Context(), UserIDKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (string, error) {
	v, ok := ctx.Value(UserIDKey).(string)
	if !ok || v == "" {
		return "", errors.New("userID not found in context")
	}
	return v, nil
}
