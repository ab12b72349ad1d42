package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: infrastructure endpoints plus the
// account endpoints a visitor needs before holding a token.
var publicPaths = map[string]bool{
	"/health":                true,
	"/health/db":             true,
	"/metrics":               true,
	"/api/v1/auth/register":  true,
	"/api/v1/auth/login":     true,
	"/api/v1/treatments":     true,
	"/api/v1/treatments/:id": true,
	"/api/v1/plans/:dosha":   true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
