package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/airqo-platform/gateway/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128

	// gin context keys
	ctxRequestID   = "request_id"
	ctxAuthMode    = "auth_mode"
	ctxAuthSource  = "auth_source"
	ctxSessionUser = "session_user"
)

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// requestIDMiddleware keeps a sane caller-supplied X-Request-ID or mints a
// ULID, and puts it on the inbound request so it is forwarded upstream
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if !validRequestID(id) {
			id = ulid.Make().String()
			c.Request.Header.Set(requestIDHeader, id)
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, ch := range id {
		if ch < 0x21 || ch > 0x7e {
			return false
		}
	}
	return true
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		evt := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt = evt.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if mode := c.GetString(ctxAuthMode); mode != "" {
			evt = evt.Str("auth_mode", mode).Str("auth_source", c.GetString(ctxAuthSource))
		}
		if user := c.GetString(ctxSessionUser); user != "" {
			evt = evt.Str("session_user", user)
		}

		evt.Msg("HTTP request")
	}
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// rateLimiter implements per-client token buckets with lazy cleanup
type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(rps),
		burst:     burst,
		idleTTL:   time.Hour,
		lastSweep: time.Now(),
	}
}

// Allow checks if a request from the given client is allowed
func (rl *rateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = now

	if now.Sub(rl.lastSweep) > rl.idleTTL {
		threshold := now.Add(-rl.idleTTL)
		for k, e := range rl.limiters {
			if e.lastAccess.Before(threshold) {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", "1")
			respondWithError(c, s.logger, http.StatusTooManyRequests, errRateLimited, "Too many requests")
			return
		}
		c.Next()
	}
}
