package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds the request context so database calls give up once
// the deadline passes. Requests whose path ends in one of longLived (the
// websocket upgrade by default) keep the parent context. A non-positive
// timeout disables the middleware.
func RequestTimeout(timeout time.Duration, longLived ...string) echo.MiddlewareFunc {
	if len(longLived) == 0 {
		longLived = []string{"/ws"}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || hasSuffixAny(c.Request().URL.Path, longLived) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
			}
			return err
		}
	}
}

func hasSuffixAny(path string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
