package utils

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type QueryOptions struct {
	Page   int
	Limit  int
	Search string
}

func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return QueryOptions{
		Page:   page,
		Limit:  limit,
		Search: strings.TrimSpace(q.Get("q")),
	}
}

// Window returns the [start, end) bounds of the requested page over n items.
// Pages past the end give an empty window.
func (o QueryOptions) Window(n int) (int, int) {
	if n <= 0 || o.Page < 1 || o.Limit < 1 {
		return 0, 0
	}
	// (Page-1)*Limit may overflow, so compare pages before multiplying.
	if o.Page-1 > (n-1)/o.Limit {
		return n, n
	}
	start := (o.Page - 1) * o.Limit
	end := n
	if o.Limit < n-start {
		end = start + o.Limit
	}
	return start, end
}

func ContainsIgnoreCase(str, substr string) bool {
	return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
}
