package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/*path", "200"))

	RecordHTTPRequest("GET", "/api/*path", "200", 15*time.Millisecond)
	RecordHTTPRequest("GET", "/api/*path", "200", 20*time.Millisecond)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/api/*path", "200"))
	assert.Equal(t, before+2, after)
}

func TestRecordUpstream(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		outcome  string
		duration time.Duration
	}{
		{"success", "token", "success", 40 * time.Millisecond},
		{"upstream error", "jwt", "upstream_error", 120 * time.Millisecond},
		{"rejected before sending", "token", "rejected", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := UpstreamRequests.WithLabelValues(tt.mode, tt.outcome)
			before := testutil.ToFloat64(counter)

			RecordUpstream(tt.mode, tt.outcome, tt.duration)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestCollectorsRegistered(t *testing.T) {
	Classifications.WithLabelValues("none", "table").Inc()
	RoutingRejections.WithLabelValues("reserved").Inc()
	UpstreamReady.Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(UpstreamReady))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(Classifications), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RoutingRejections), 1)
}
