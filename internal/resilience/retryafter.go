package resilience

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Provider error text sometimes embeds a wait hint, e.g.
// "429 rate_limit_exceeded: try again in 12.1s" or "retry after 5 seconds".
// The extraction is best effort: when nothing matches, callers fall back to
// their configured backoff.
var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`try again in ([0-9]+(?:\.[0-9]+)?)\s*s`),
	regexp.MustCompile(`retry[- ]after:?\s*([0-9]+(?:\.[0-9]+)?)\s*(?:s\b|sec|second)`),
}

// RetryAfter returns the wait the provider asked for, or 0 when the error
// carries no usable hint. An explicit RetryAfterSecs on a TransientError in
// the chain takes precedence over text matching.
func RetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}

	var te *TransientError
	if errors.As(err, &te) && te.RetryAfterSecs > 0 {
		return time.Duration(te.RetryAfterSecs * float64(time.Second))
	}

	return retryAfterFromText(err.Error())
}

func retryAfterFromText(msg string) time.Duration {
	for _, re := range retryAfterPatterns {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil || secs <= 0 {
			continue
		}
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}
