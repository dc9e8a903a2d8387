package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/airqo-platform/gateway/internal/metrics"
)

const breakerName = "upstream-api"

// errUpstreamServer marks a 5xx reply so the breaker counts it as a failure.
// The response itself is still relayed.
var errUpstreamServer = errors.New("upstream server error")

// newBreaker builds the upstream circuit breaker:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 30 second wait before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func newBreaker(log zerolog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				log.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening upstream circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err)
		},
	})
}

// isCallerError reports failures caused by the inbound request rather than
// the upstream: the caller hanging up or sending a body over the limit
func isCallerError(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.Is(err, context.Canceled) || errors.As(err, &tooLarge)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
