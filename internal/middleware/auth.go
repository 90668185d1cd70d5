package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"session-service/internal/session"
)

// unexported, collision-proof context keys
type sessionIDContextKeyType struct{}
type principalContextKeyType struct{}

var (
	sessionIDKey = sessionIDContextKeyType{}
	principalKey = principalContextKeyType{}
)

// SessionIDFromContext extracts the authenticated session id from context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

// PrincipalFromContext extracts the authenticated principal name, if
// the session carries one.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey).(string)
	return name, ok
}

type AuthMiddleware struct {
	Store session.Store
}

func NewAuthMiddleware(store session.Store) *AuthMiddleware {
	return &AuthMiddleware{Store: store}
}

func (a *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read session cookie
		cookie, err := r.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 2. Load session; expired sessions come back nil and are
		// already deleted by the store.
		sess, err := a.Store.FindByID(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, session.ErrMalformedID) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// 3. Slide the expiry window
		sess.SetLastAccessedTime(time.Now())
		if err := a.Store.Save(r.Context(), sess); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		// 4. Attach session identity to context
		ctx := context.WithValue(r.Context(), sessionIDKey, sess.ID())
		if name, ok := session.Principal(sess); ok {
			ctx = context.WithValue(ctx, principalKey, name)
		}

		// 5. Continue request
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
