package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. Entries are echo route patterns.
var publicPaths = map[string]bool{
	"/health":                           true,
	"/health/db":                        true,
	"/api/v1/dentists/:id/availability": true,
}

// AuthSkipper is the Skipper for JWTConfig.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the route pattern path needs no token.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
