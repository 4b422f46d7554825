package shared

import (
	"net/http"
	"strconv"
)

// Page is a list window taken from ?limit=&offset=, or ?page= counted from 1.
type Page struct {
	Limit  int
	Offset int
}

func ParsePage(r *http.Request, defaultLimit, maxLimit int) Page {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), defaultLimit, 1)
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	offset := queryInt(q.Get("offset"), 0, 0)
	if n := queryInt(q.Get("page"), 0, 1); n > 0 {
		offset = (n - 1) * limit
	}
	return Page{Limit: limit, Offset: offset}
}

// SetTotal reports the unpaged result size.
func SetTotal(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}

func queryInt(raw string, fallback, min int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}
