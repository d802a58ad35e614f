package middleware

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swimdesk/internal/common"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoSession(c echo.Context) error {
	sid, _ := common.GetSessionIDFromContext(c.Request().Context())
	return c.String(http.StatusOK, sid)
}

func TestSessionIssuesCookie(t *testing.T) {
	e := echo.New()
	e.Use(Session(SessionConfig{TTL: time.Hour}))
	e.GET("/", echoSession)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, cookies[0].Value, rec.Body.String())
	_, err := uuid.Parse(cookies[0].Value)
	assert.NoError(t, err)
}

func TestSessionReusesValidCookie(t *testing.T) {
	e := echo.New()
	e.Use(Session(SessionConfig{TTL: time.Hour}))
	e.GET("/", echoSession)

	sid := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, sid, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionReplacesMalformedCookie(t *testing.T) {
	e := echo.New()
	e.Use(Session(SessionConfig{TTL: time.Hour}))
	e.GET("/", echoSession)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "../../etc/passwd"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.NotEqual(t, "../../etc/passwd", rec.Body.String())
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestExpireSessionCookie(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)

	ExpireSessionCookie(c, SessionConfig{TTL: time.Hour})
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func whoAmI(c echo.Context) error {
	ctx := c.Request().Context()
	uid, _ := common.GetUserIDFromContext(ctx)
	role, _ := common.GetRoleFromContext(ctx)
	return c.String(http.StatusOK, uid+":"+role)
}

func signHS256(t *testing.T, secret, subject, role string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTCustomClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func serveWithToken(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTVerifierSecret(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: "s3cret"}, discardLogger())
	require.NoError(t, err)
	defer v.Close()

	e := echo.New()
	e.GET("/admin", whoAmI, v.Middleware(), RequireRole("admin"))

	rec := serveWithToken(e, signHS256(t, "s3cret", "user-1", "admin", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1:admin", rec.Body.String())

	rec = serveWithToken(e, signHS256(t, "s3cret", "user-2", "staff", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serveWithToken(e, signHS256(t, "other", "user-1", "admin", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveWithToken(e, signHS256(t, "s3cret", "user-1", "admin", time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveWithToken(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
}

func TestJWTVerifierJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	v, err := NewJWTVerifier(JWTConfig{JWKSURL: srv.URL}, discardLogger())
	require.NoError(t, err)
	defer v.Close()

	e := echo.New()
	e.GET("/admin", whoAmI, v.Middleware(), RequireRole("admin"))

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &JWTCustomClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@swimdesk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	rec := serveWithToken(e, signed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@swimdesk:admin", rec.Body.String())

	// An HS256 token must not be accepted by a JWKS verifier.
	rec = serveWithToken(e, signHS256(t, "s3cret", "x", "admin", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTVerifierRequiresKey(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{}, discardLogger())
	assert.Error(t, err)
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoAmI, RequireRole("admin"))

	rec := serveWithToken(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
}

func TestVersionMiddleware(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	e.Use(vm.APIVersionResolver())
	v1 := e.Group("/v1", vm.VersionHeader("v1"))
	v1.GET("/pricing", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("api_version").(string))
	})
	e.GET("/v2/pricing", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("api_version").(string))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pricing", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Body.String())
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
	assert.Equal(t, "Current stable API version", rec.Header().Get("X-API-Message"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/pricing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
	assert.Contains(t, rec.Body.String(), `"supported_versions":"v1"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "v1", rec.Body.String())
}

func TestExtractVersionFromPath(t *testing.T) {
	assert.Equal(t, "v1", extractVersionFromPath("/v1/pricing"))
	assert.Equal(t, "v12", extractVersionFromPath("/v12"))
	assert.Equal(t, "", extractVersionFromPath("/videos"))
	assert.Equal(t, "", extractVersionFromPath("/v0/x"))
	assert.Equal(t, "", extractVersionFromPath("/health"))
}

type changeBody struct {
	Tier   *string `json:"tier,omitempty" validate:"omitempty,oneof=basic starter growth unlimited"`
	Token  string  `json:"token" validate:"required"`
	Secret string  `json:"-" validate:"omitempty,uuid"`
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	tier := "growth"
	assert.NoError(t, v.Validate(&changeBody{Tier: &tier, Token: "x"}))
	assert.NoError(t, v.Validate(&changeBody{Token: "x"}))

	bad := "gold"
	err := v.Validate(&changeBody{Tier: &bad})
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.Equal(t, "field tier must be one of: basic starter growth unlimited", details["tier"])
	assert.Equal(t, "field token is a required field", details["token"])

	assert.Nil(t, ValidationDetails(assert.AnError))
}

func TestRequestLoggerAndAudit(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(log))
	admin := e.Group("/v1/admin", AuditMutations(log))
	admin.POST("/businesses/:id/changes", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	admin.GET("/businesses", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "health probes are not logged")

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/admin/businesses", nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.NotContains(t, buf.String(), `"msg":"audit"`)

	buf.Reset()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/admin/businesses/abc/changes", nil))
	out := buf.String()
	assert.Contains(t, out, `"msg":"audit"`)
	assert.Contains(t, out, `"business_id":"abc"`)
	assert.Contains(t, out, `"action":"POST /v1/admin/businesses/:id/changes"`)
	assert.Contains(t, out, `"msg":"request"`)
}
