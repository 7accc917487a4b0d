package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimits holds request body caps in bytes.
type BodyLimits struct {
	Default int64
	// Messages applies to message sends, which may carry attachment
	// metadata.
	Messages int64
}

// DefaultBodyLimits allows 1 MB bodies and 5 MB message sends.
func DefaultBodyLimits() BodyLimits {
	return BodyLimits{Default: 1 << 20, Messages: 5 << 20}
}

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

// BodyLimit rejects bodies over the applicable cap. A declared
// Content-Length is checked up front; chunked bodies are counted while
// the handler reads them, and an overrun replaces whatever error the
// binder produced.
func BodyLimit(limits BodyLimits) echo.MiddlewareFunc {
	if limits.Default <= 0 {
		limits.Default = DefaultBodyLimits().Default
	}
	if limits.Messages < limits.Default {
		limits.Messages = limits.Default
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := limits.Default
			if req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/messages") {
				limit = limits.Messages
			}
			if req.ContentLength > limit {
				return errBodyTooLarge
			}

			body := &countingBody{ReadCloser: req.Body, left: limit}
			req.Body = body
			err := next(c)
			if body.overrun && !c.Response().Committed {
				return errBodyTooLarge
			}
			return err
		}
	}
}

type countingBody struct {
	io.ReadCloser
	left    int64
	overrun bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	if b.overrun {
		return 0, errBodyTooLarge
	}
	// Read one byte past the cap so an exact-size body is not flagged.
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		b.overrun = true
		return 0, errBodyTooLarge
	}
	return n, err
}
