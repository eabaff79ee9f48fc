package reddit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned when Reddit answers with a non-2xx status or a non-empty json.errors list.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Errors holds the reported errors as "CODE: message" strings.
	Errors []string
}

func (e *APIError) Error() string {
	if e == nil {
		return "reddit api error"
	}
	if len(e.Errors) == 0 {
		return fmt.Sprintf("reddit api error: status %d", e.Status)
	}
	return fmt.Sprintf("reddit api error: status %d: %s", e.Status, strings.Join(e.Errors, "; "))
}

// IsRateLimited reports whether err is a Reddit rate limit rejection.
func IsRateLimited(err error) bool {
	var target *APIError
	if !errors.As(err, &target) {
		return false
	}
	if target.Status == http.StatusTooManyRequests {
		return true
	}
	for _, e := range target.Errors {
		if strings.HasPrefix(e, "RATELIMIT") {
			return true
		}
	}
	return false
}

// formatErrors flattens Reddit's [["CODE", "message", "field"], ...] error tuples.
func formatErrors(raw [][]any) []string {
	out := make([]string, 0, len(raw))
	for _, tuple := range raw {
		var parts []string
		for i, v := range tuple {
			if i > 1 {
				break
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, strings.Join(parts, ": "))
	}
	return out
}
