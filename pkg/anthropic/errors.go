package anthropic

import (
	"errors"
	"strconv"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/sells-group/persona-cli/internal/resilience"
)

// classifyError maps an SDK failure onto the resilience taxonomy so the
// retry controller can decide what to do with it. wrapped is the
// already-wrapped error to surface; raw is the original SDK error used for
// inspection.
func classifyError(wrapped, raw error) error {
	var apiErr *sdk.Error
	if !errors.As(raw, &apiErr) {
		// Network-level failures (timeouts, resets) are recognized by the
		// resilience package's own heuristics; pass them through.
		return wrapped
	}

	switch {
	case apiErr.StatusCode == 400, apiErr.StatusCode == 401,
		apiErr.StatusCode == 403, apiErr.StatusCode == 404,
		apiErr.StatusCode == 413:
		return resilience.NewFatalError(wrapped, apiErr.StatusCode)

	case resilience.IsTransientHTTPStatus(apiErr.StatusCode), apiErr.StatusCode >= 500:
		te := resilience.NewTransientError(wrapped, apiErr.StatusCode)
		if apiErr.Response != nil {
			if ra := apiErr.Response.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs > 0 {
					te.RetryAfterSecs = secs
				}
			}
		}
		return te

	default:
		return wrapped
	}
}
