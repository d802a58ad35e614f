package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"swimdesk/internal/common"
)

// SessionCookieName names the browser session cookie.
const SessionCookieName = "swimdesk_session"

type SessionConfig struct {
	TTL    time.Duration
	Secure bool
}

// Session reads the session cookie, issuing a new session id when the cookie
// is missing or malformed, and stores the id in the request context.
func Session(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID := ""
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				c.SetCookie(newSessionCookie(sessionID, cfg))
			}

			ctx := context.WithValue(c.Request().Context(), common.SessionIDKey, sessionID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(common.SessionIDKey), sessionID)

			return next(c)
		}
	}
}

// ExpireSessionCookie tells the browser to drop the session cookie.
func ExpireSessionCookie(c echo.Context, cfg SessionConfig) {
	cookie := newSessionCookie("", cfg)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	c.SetCookie(cookie)
}

func newSessionCookie(value string, cfg SessionConfig) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
