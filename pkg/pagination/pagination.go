package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request. Page is
// 1-based and only set for page/limit requests.
type Params struct {
	Limit  int
	Offset int
	Page   int
}

// FromContext reads limit/offset query parameters.
func FromContext(c echo.Context) Params {
	limit := clampLimit(atoi(c.QueryParam("limit")), DefaultLimit)

	offset := atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// PageFromContext reads page/limit query parameters. A missing or invalid
// page is 1; a missing limit is defaultLimit.
func PageFromContext(c echo.Context, defaultLimit int) Params {
	return PageParams(atoi(c.QueryParam("page")), atoi(c.QueryParam("limit")), defaultLimit)
}

// PageParams builds Params from a 1-based page number.
func PageParams(page, limit, defaultLimit int) Params {
	limit = clampLimit(limit, defaultLimit)
	if page < 1 {
		page = 1
	}
	return Params{Limit: limit, Offset: (page - 1) * limit, Page: page}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page,omitempty"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}
