package daemon

import (
	"context"
	"net/http"
	"strings"

	"aplose/internal/logging"
	"aplose/internal/store"
)

// UserResolver maps bearer tokens to users.
type UserResolver interface {
	UserByToken(ctx context.Context, token string) (*store.User, error)
}

// identity resolves "Authorization: Bearer <token>" to a user and stores the
// user id in the request context. Requests without a known token get 401.
func identity(users UserResolver, writeError func(http.ResponseWriter, int, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			user, err := users.UserByToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), user.ID)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
