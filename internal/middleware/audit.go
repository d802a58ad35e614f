package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"swimdesk/internal/common"
	"swimdesk/internal/lib/sl"
)

// RequestLogger logs every request through slog. Health and metrics probes
// are skipped.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return shouldSkipLogging(c.Request().Method, c.Request().URL.Path)
		},
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.String("route", v.RoutePath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				attrs = append(attrs, slog.String("request_id", v.RequestID))
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, sl.Err(v.Error))
				level = slog.LevelWarn
			}
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}

// AuditMutations records who changed what on admin routes. Reads are not
// audited.
func AuditMutations(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			method := c.Request().Method
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return err
			}

			ctx := c.Request().Context()
			userID, _ := common.GetUserIDFromContext(ctx)
			role, _ := common.GetRoleFromContext(ctx)

			attrs := []slog.Attr{
				slog.String("action", method+" "+c.Path()),
				slog.String("user_id", userID),
				slog.String("role", role),
				slog.String("ip", c.RealIP()),
			}
			if id := c.Param("id"); id != "" {
				attrs = append(attrs, slog.String("business_id", id))
			}
			if err != nil {
				attrs = append(attrs, sl.Err(err))
			}
			log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)

			return err
		}
	}
}

func shouldSkipLogging(method, path string) bool {
	if method != http.MethodGet {
		return false
	}
	for _, prefix := range []string{"/health", "/metrics", "/favicon", "/robots.txt"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
