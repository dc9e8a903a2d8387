// Package health tracks whether the upstream API is reachable.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/airqo-platform/gateway/internal/metrics"
)

// Status is the outcome of the latest probe
type Status struct {
	Ready      bool      `json:"ready"`
	StatusCode int       `json:"status_code,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	LatencyMS  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
}

// Prober periodically probes the upstream without credentials
type Prober struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	logger   zerolog.Logger

	mu     sync.RWMutex
	status Status

	cron *cron.Cron
}

// NewProber creates a prober for baseURL + healthPath
func NewProber(baseURL, healthPath string, interval time.Duration, client *http.Client, log zerolog.Logger) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	target := strings.TrimRight(baseURL, "/")
	if healthPath != "" {
		target += "/" + strings.TrimLeft(healthPath, "/")
	}

	timeout := interval / 2
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}

	return &Prober{
		url:      target,
		interval: interval,
		timeout:  timeout,
		client:   client,
		logger:   log.With().Str("component", "health").Logger(),
	}
}

// Probe checks the upstream once and records the result. Any response below
// 500 counts as ready: the upstream answered.
func (p *Prober) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	status := Status{CheckedAt: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		status.Error = "invalid probe url"
		return p.record(status, err)
	}

	resp, err := p.client.Do(req)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = "upstream unreachable"
		return p.record(status, err)
	}
	resp.Body.Close()

	status.StatusCode = resp.StatusCode
	status.Ready = resp.StatusCode < http.StatusInternalServerError
	if !status.Ready {
		status.Error = fmt.Sprintf("upstream returned %d", resp.StatusCode)
	}
	return p.record(status, nil)
}

func (p *Prober) record(status Status, err error) Status {
	p.mu.Lock()
	changed := p.status.Ready != status.Ready || p.status.CheckedAt.IsZero()
	p.status = status
	p.mu.Unlock()

	if status.Ready {
		metrics.UpstreamReady.Set(1)
	} else {
		metrics.UpstreamReady.Set(0)
	}

	if changed {
		evt := p.logger.Info()
		if !status.Ready {
			evt = p.logger.Warn().Err(err)
		}
		evt.Bool("ready", status.Ready).Int("status_code", status.StatusCode).Msg("Upstream readiness changed")
	}
	return status
}

// Status returns the latest probe result
func (p *Prober) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Start runs one probe now and schedules the rest
func (p *Prober) Start() error {
	p.Probe(context.Background())

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.Probe(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule upstream probe: %w", err)
	}
	c.Start()
	p.cron = c

	p.logger.Info().Dur("interval", p.interval).Msg("Upstream readiness probe scheduled")
	return nil
}

// Stop halts scheduling and waits for a running probe to finish
func (p *Prober) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}
