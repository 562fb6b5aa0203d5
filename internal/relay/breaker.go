package relay

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wolfman30/esc-funnel/internal/clickup"
)

// NewBreaker guards the ClickUp upstream. It opens after three consecutive
// failures, or when more than 5% of at least 20 requests in a window fail.
// ClickUp rejecting a request (4xx other than 429) is not an upstream failure.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *clickup.APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
	})
}
