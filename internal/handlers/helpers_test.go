package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"swimdesk/internal/middleware"
	"swimdesk/internal/tierstate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testCookie = middleware.SessionConfig{TTL: time.Hour}

func newRegistry(t *testing.T, persist tierstate.Persistence) *tierstate.Registry {
	t.Helper()
	r, err := tierstate.NewRegistry(persist, testLogger(), tierstate.RegistryConfig{
		Capacity: 16,
		LoadWait: time.Second,
	})
	require.NoError(t, err)
	return r
}

// newSessionServer wires the session-scoped routes the way main does.
func newSessionServer(stores SessionStores) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Session(testCookie))

	sessions := NewSessionHandlers(stores, testCookie, testLogger())
	catalog := NewTierHandlers(stores)
	gates := NewGateHandlers(stores)

	v1 := e.Group("/v1")
	v1.GET("/pricing", catalog.GetPricing)
	v1.GET("/tiers", catalog.ListTiers)
	v1.GET("/tiers/:tier", catalog.GetTier)
	v1.GET("/features/:feature", catalog.GetFeature)
	v1.GET("/session/tier", sessions.GetTier)
	v1.PUT("/session/tier", sessions.SetTier)
	v1.DELETE("/session", sessions.EndSession)
	v1.GET("/session/features", sessions.ListFeatures)
	v1.POST("/gate/evaluate", gates.Evaluate)
	v1.POST("/gate/render", gates.Render)
	v1.POST("/gate/badge", gates.Badge)
	return e
}

func doRequest(e *echo.Echo, method, target, sessionID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newSessionID() string {
	return uuid.NewString()
}
