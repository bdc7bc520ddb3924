package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Claims struct {
	jwt.RegisteredClaims
	Kind PrincipalKind `json:"kind"`
	Role string        `json:"role,omitempty"`
}

type JWTConfig struct {
	SigningKey []byte
	TokenTTL   time.Duration
}

// IssueToken signs a token for the given principal.
func IssueToken(cfg JWTConfig, p Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
		},
		Kind: p.Kind,
		Role: p.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.SigningKey)
}

// JWTMiddleware validates the bearer token and places the resolved Principal
// on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}
			if claims.Kind != KindPatient && claims.Kind != KindStaff {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token principal")
			}

			p := Principal{Kind: claims.Kind, ID: id, Role: claims.Role}
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development that grants
// unauthenticated requests an admin staff principal.
func DevAuthMiddleware() echo.MiddlewareFunc {
	devID := uuid.New()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
				p := Principal{Kind: KindStaff, ID: devID, Role: "admin"}
				c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			}
			return next(c)
		}
	}
}
