package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"swimdesk/internal/common"
	"swimdesk/internal/lib/sl"
)

// JWTCustomClaims are the claims issued by the external auth API.
type JWTCustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type JWTConfig struct {
	// Secret verifies HS256 tokens when JWKSURL is empty.
	Secret  string
	JWKSURL string
}

// JWTVerifier holds the echo-jwt configuration and, when verifying against a
// JWKS endpoint, the background key refresher.
type JWTVerifier struct {
	config echojwt.Config
	jwks   *keyfunc.JWKS
}

func NewJWTVerifier(cfg JWTConfig, log *slog.Logger) (*JWTVerifier, error) {
	const op = "middleware.NewJWTVerifier"

	v := &JWTVerifier{}
	v.config = echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return
			}
			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, common.RoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	}

	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Warn("jwks refresh failed", slog.String("op", op), sl.Err(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		v.jwks = jwks
		v.config.KeyFunc = jwks.Keyfunc
	case cfg.Secret != "":
		v.config.SigningKey = []byte(cfg.Secret)
	default:
		return nil, fmt.Errorf("%s: %w", op, errors.New("either a JWT secret or a JWKS URL is required"))
	}

	return v, nil
}

// Middleware returns the echo middleware that rejects requests without a
// valid bearer token.
func (v *JWTVerifier) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(v.config)
}

// Close stops the JWKS refresher.
func (v *JWTVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
