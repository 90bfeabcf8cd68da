// internal/app/system/paging/paging.go
package paging

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// MaxLimit caps the page size a client may ask for.
const MaxLimit = 500

// Window is a limit/offset page request. Limit 0 means "use the default".
type Window struct {
	Limit  int64
	Offset int64
}

// ParseWindow reads the "limit" and "offset" query parameters. Missing values
// are zero. Non-numeric values are an error; range checks beyond MaxLimit are
// left to the caller's domain rules, except that limit is clamped.
func ParseWindow(r *http.Request) (Window, error) {
	var win Window
	limit, err := parseInt(r, "limit")
	if err != nil {
		return win, err
	}
	offset, err := parseInt(r, "offset")
	if err != nil {
		return win, err
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	win.Limit, win.Offset = limit, offset
	return win, nil
}

func parseInt(r *http.Request, key string) (int64, error) {
	s := query.Get(r, key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
