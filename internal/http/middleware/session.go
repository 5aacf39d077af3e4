package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName carries the browsing-session key that persisted payment
// choices are stored under.
const SessionCookieName = "booking_session"

const sessionMaxAge = 24 * time.Hour

type sessionKeyCtx struct{}

// Session ensures every request carries a browsing-session key, issuing a
// cookie when the client has none (or an unparseable one).
func Session(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(SessionCookieName); err == nil {
				if id, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
					key = id.String()
				}
			}
			if key == "" {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    key,
					Path:     "/",
					MaxAge:   int(sessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSessionKey(r.Context(), key)))
		})
	}
}

// WithSessionKey stores key on ctx.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyCtx{}, key)
}

// SessionKeyFromContext returns the browsing-session key, if any.
func SessionKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKeyCtx{}).(string)
	return key, ok && key != ""
}
