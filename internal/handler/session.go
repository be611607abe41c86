package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/cart-session/internal/session"
)

type sessionKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// withSession loads the session named by the cookie, issuing a new one when
// the cookie is missing or malformed.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(h.cfg.CookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			zctx.From(r.Context()).Debug("Issued session", zap.String("session", id))
		}

		cookie := &http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		}
		if h.cfg.CookieTTL > 0 {
			cookie.MaxAge = int(h.cfg.CookieTTL.Seconds())
		}
		http.SetCookie(w, cookie)

		ctx := context.WithValue(r.Context(), sessionKey{}, h.sessions.Load(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
