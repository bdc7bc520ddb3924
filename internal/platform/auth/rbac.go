package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that admits staff principals holding at
// least one of the named roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.IsStaff() {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
			}
			if p.Role == "admin" {
				return next(c)
			}
			for _, required := range roles {
				if p.Role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequirePatient admits only patient principals.
func RequirePatient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !p.IsPatient() {
				return echo.NewHTTPError(http.StatusForbidden, "patient account required")
			}
			return next(c)
		}
	}
}

// RequireAuthenticated admits any authenticated principal, patient or staff.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFromContext(c.Request().Context()); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}
