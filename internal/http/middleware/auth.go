package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/service"
)

const userContextKey contextKey = "user"

// Authenticator resolves a bearer access token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
}

// RequireUser rejects requests without a valid bearer access token and
// stores the authenticated user in the request context.
func RequireUser(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.ExtractBearer(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInvalidToken):
				writeUnauthorized(w, r)
				return
			case errors.Is(err, service.ErrInactiveUser):
				writeErrorBody(w, r, http.StatusBadRequest, "inactive_user", "inactive user")
				return
			default:
				writeErrorBody(w, r, http.StatusInternalServerError, "internal_error", "failed to authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok && user != nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeErrorBody(w, r, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
