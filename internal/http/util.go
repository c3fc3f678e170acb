package httpx

import (
	"net/http"
	"strconv"

	apperrors "github.com/stormgate/auth-api/internal/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ParseLimitOffset reads list pagination from query parameters,
// applying the default and cap.
func ParseLimitOffset(r *http.Request) (int, int, error) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, apperrors.ValidationField("limit", "limit must be a positive integer")
		}
		limit = min(n, maxListLimit)
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, apperrors.ValidationField("offset", "offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}
