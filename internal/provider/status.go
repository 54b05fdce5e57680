package provider

import (
	"fmt"
	"net/http"
	"strings"
)

// CheckStatus maps a non-2xx response onto the package sentinels. body is the
// already-read response payload; message is the provider's own error text when
// one could be decoded.
func CheckStatus(name string, statusCode int, message string, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	detail := strings.TrimSpace(message)
	if detail == "" {
		detail = strings.TrimSpace(string(body))
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
	}

	var base error
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		base = ErrUnauthorized
	case statusCode == http.StatusTooManyRequests:
		base = ErrRateLimited
	case statusCode >= 500:
		base = ErrUnavailable
	default:
		base = ErrRequestFailed
	}

	if detail == "" {
		return fmt.Errorf("%w: %s status %d", base, name, statusCode)
	}
	return fmt.Errorf("%w: %s status %d: %s", base, name, statusCode, detail)
}
