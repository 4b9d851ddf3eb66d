// Package pagination parses optional limit/offset query parameters.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxLimit = 100

// Params holds pagination parameters extracted from a request. A zero Limit
// means the caller did not ask for paging and every match is returned.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts pagination parameters from the echo context. Paging
// is opt-in: without a positive limit the listing is unbounded.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Limit reads the "limit" query parameter, falling back to def and capping
// at max.
func Limit(c echo.Context, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	return n
}

// Paged reports whether a limit was requested.
func (p Params) Paged() bool {
	return p.Limit > 0
}

// Window returns the slice bounds of the requested page within n items.
func (p Params) Window(n int) (start, end int) {
	start = p.Offset
	if start > n {
		start = n
	}
	end = n
	if p.Paged() && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Paged() && p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}
