// Package proxy forwards browser API calls to the upstream platform API with
// the credential their auth mode calls for.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/metrics"
)

// TokenPlacement says where the service credential goes on the outbound call
type TokenPlacement string

const (
	TokenInQuery  TokenPlacement = "query"
	TokenInHeader TokenPlacement = "header"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Options configures a Router
type Options struct {
	BaseURL          string
	APIToken         string
	TokenPlacement   TokenPlacement
	TokenParam       string
	Timeout          time.Duration
	MaxResponseBytes int64
	ReservedSegment  string
	ExternalSegment  string
	BreakerEnabled   bool
}

// OptionsFromConfig maps the process configuration onto router options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:          cfg.Upstream.BaseURL,
		APIToken:         cfg.Upstream.APIToken,
		TokenPlacement:   TokenPlacement(cfg.Upstream.TokenPlacement),
		TokenParam:       cfg.Upstream.TokenParam,
		Timeout:          cfg.Upstream.Timeout,
		MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
		ReservedSegment:  cfg.Routing.ReservedSegment,
		ExternalSegment:  cfg.Routing.ExternalSegment,
		BreakerEnabled:   cfg.Upstream.BreakerEnabled,
	}
}

// Request is one inbound API call
type Request struct {
	Method string
	// Segments is the escaped wildcard path, without the /api prefix
	Segments      []string
	RawQuery      string
	Header        http.Header
	Body          io.Reader
	ContentLength int64
}

// Response is the upstream reply as relayed to the caller
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// ContentLength is the upstream's declared length, -1 when unknown.
	// It differs from len(Body) for HEAD.
	ContentLength int64

	Mode     authmode.Mode
	Source   authmode.Source
	Redacted bool
}

// Router classifies, authenticates and forwards requests to the upstream API
type Router struct {
	opts       Options
	base       string
	classifier *authmode.Classifier
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	scrubber   *scrubber
	logger     zerolog.Logger
}

// New creates a router. A nil client gets a default transport that never
// follows redirects.
func New(opts Options, classifier *authmode.Classifier, client *http.Client, log zerolog.Logger) (*Router, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if opts.TokenPlacement == "" {
		opts.TokenPlacement = TokenInQuery
	}
	if opts.TokenParam == "" {
		opts.TokenParam = "token"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = 32 << 20
	}
	opts.ReservedSegment = strings.ToLower(opts.ReservedSegment)
	opts.ExternalSegment = strings.ToLower(opts.ExternalSegment)

	if client == nil {
		client = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			// Redirects are relayed, not followed: following one would carry
			// the service token to wherever the Location points
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	r := &Router{
		opts:       opts,
		base:       base,
		classifier: classifier,
		client:     client,
		scrubber:   newScrubber(opts.APIToken),
		logger:     log.With().Str("component", "proxy").Logger(),
	}
	if opts.BreakerEnabled {
		r.breaker = newBreaker(r.logger)
	}
	return r, nil
}

// Classifier returns the router's classification cache
func (r *Router) Classifier() *authmode.Classifier {
	return r.classifier
}

// Forward runs one request through classify -> attach credential -> forward
// -> relay. Errors are proxy-side failures; upstream error statuses come back
// as a normal Response.
func (r *Router) Forward(ctx context.Context, req *Request) (*Response, error) {
	plan, err := r.decide(req)
	if err != nil {
		return nil, err
	}
	first, mode, source := plan.Segment, plan.Mode, plan.Source

	metrics.Classifications.WithLabelValues(string(mode), string(source)).Inc()
	metrics.ClassificationCacheEntries.Set(float64(r.classifier.Len()))

	upCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	outReq, err := r.buildOutbound(upCtx, req, plan.Segments, mode)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("method", req.Method).
		Str("segment", first).
		Str("mode", string(mode)).
		Str("source", string(source)).
		Msg("Forwarding request")

	start := time.Now()
	resp, err := r.roundTrip(outReq)
	if err != nil {
		perr := r.mapTransportError(ctx, err)
		metrics.RecordUpstream(string(mode), outcomeFor(perr), time.Since(start))
		return nil, perr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.MaxResponseBytes+1))
	if err != nil {
		perr := r.mapTransportError(ctx, err)
		metrics.RecordUpstream(string(mode), outcomeFor(perr), time.Since(start))
		return nil, perr
	}
	if int64(len(body)) > r.opts.MaxResponseBytes {
		metrics.RecordUpstream(string(mode), "upstream_error", time.Since(start))
		return nil, ErrResponseTooLarge
	}

	outcome := "success"
	if resp.StatusCode >= 400 {
		outcome = "upstream_error"
	}
	metrics.RecordUpstream(string(mode), outcome, time.Since(start))

	body, scrubbed := r.scrubber.scrub(body)
	if scrubbed {
		r.logger.Warn().Str("segment", first).Msg("Upstream response echoed the service credential; redacted")
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Header:        relayHeaders(resp.Header, r.scrubber),
		Body:          body,
		ContentLength: resp.ContentLength,
		Mode:          mode,
		Source:        source,
		Redacted:      scrubbed,
	}, nil
}

// Plan is the routing decision for a request, made without network I/O
type Plan struct {
	Method      string                   `json:"method"`
	Segments    []string                 `json:"segments"`
	Segment     string                   `json:"segment"`
	Mode        authmode.Mode            `json:"mode"`
	Source      authmode.Source          `json:"source"`
	Requirement authmode.AuthRequirement `json:"requirement"`
	// Target is the outbound URL with the service credential redacted
	Target string `json:"target"`
}

// Plan reports what Forward would do with req. Rejections return the same
// errors Forward does.
func (r *Router) Plan(req *Request) (*Plan, error) {
	plan, err := r.decide(req)
	if err != nil {
		return nil, err
	}
	query := req.RawQuery
	if plan.Mode == authmode.ModeToken && r.opts.TokenPlacement == TokenInQuery {
		query = withToken(query, r.opts.TokenParam, redacted)
	}
	plan.Target = r.target(plan.Segments, query)
	return plan, nil
}

func (r *Router) decide(req *Request) (*Plan, error) {
	if !allowedMethods[req.Method] {
		return nil, ErrMethodNotAllowed
	}

	segments, forced, err := r.route(req.Segments)
	if err != nil {
		metrics.RoutingRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	override := forced
	if override == "" && req.Header != nil {
		override = authmode.ParseMode(req.Header.Get(authmode.HeaderName))
	}
	first, _ := url.PathUnescape(segments[0])
	requirement, source := r.classifier.Resolve(override, first)

	return &Plan{
		Method:      req.Method,
		Segments:    segments,
		Segment:     strings.ToLower(first),
		Mode:        requirement.Mode(),
		Source:      source,
		Requirement: requirement,
	}, nil
}

// route validates the wildcard path and strips the external prefix, which
// forces token mode for the rest of the path
func (r *Router) route(segments []string) ([]string, authmode.Mode, error) {
	var forced authmode.Mode

	if len(segments) > 0 && r.opts.ExternalSegment != "" && strings.EqualFold(segments[0], r.opts.ExternalSegment) {
		segments = segments[1:]
		forced = authmode.ModeToken
	}
	if len(segments) == 0 || segments[0] == "" {
		return nil, "", ErrEmptyPath
	}

	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil || containsDotSegment(decoded) {
			return nil, "", ErrInvalidPath
		}
		if i == 0 && strings.EqualFold(decoded, r.opts.ReservedSegment) {
			return nil, "", ErrReservedPath
		}
	}
	return segments, forced, nil
}

// containsDotSegment also catches %2F-encoded traversal such as "..%2Fadmin"
func containsDotSegment(s string) bool {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == "." || part == ".." {
			return true
		}
	}
	return false
}

func (r *Router) buildOutbound(ctx context.Context, req *Request, segments []string, mode authmode.Mode) (*http.Request, error) {
	header := outboundHeaders(req.Header)
	query := req.RawQuery

	switch mode {
	case authmode.ModeJWT:
		if values := req.Header.Values("Authorization"); len(values) > 0 {
			header["Authorization"] = append([]string(nil), values...)
		}
	case authmode.ModeToken:
		if r.opts.APIToken == "" {
			return nil, ErrMissingServiceToken
		}
		if r.opts.TokenPlacement == TokenInHeader {
			header.Set("Authorization", "Bearer "+r.opts.APIToken)
		} else {
			query = withToken(query, r.opts.TokenParam, r.opts.APIToken)
		}
	}

	target := r.target(segments, query)

	var body io.Reader
	if req.Method != http.MethodGet && req.Method != http.MethodHead && req.Body != nil {
		body = req.Body
	}

	out, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, ErrInvalidPath
	}
	out.Header = header
	if body != nil && req.ContentLength > 0 {
		out.ContentLength = req.ContentLength
	}
	return out, nil
}

func (r *Router) target(segments []string, query string) string {
	target := r.base + "/" + strings.Join(segments, "/")
	if query != "" {
		target += "?" + query
	}
	return target
}

// withToken drops any caller-supplied param of the same name and appends the
// token. Every other pair is kept as sent, including ones ParseQuery rejects.
func withToken(rawQuery, param, token string) string {
	pair := url.QueryEscape(param) + "=" + url.QueryEscape(token)
	if rawQuery == "" {
		return pair
	}

	kept := make([]string, 0, strings.Count(rawQuery, "&")+2)
	for _, p := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(p, "=")
		if key == param {
			continue
		}
		if decoded, err := url.QueryUnescape(key); err == nil && decoded == param {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(append(kept, pair), "&")
}

func (r *Router) roundTrip(req *http.Request) (*http.Response, error) {
	do := func() (*http.Response, error) {
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamServer
		}
		return resp, nil
	}

	var (
		resp *http.Response
		err  error
	)
	if r.breaker != nil {
		resp, err = r.breaker.Execute(do)
	} else {
		resp, err = do()
	}

	if errors.Is(err, errUpstreamServer) {
		return resp, nil
	}
	return resp, err
}

// mapTransportError converts a client/transport failure into a proxy error.
// ctx is the inbound request context.
func (r *Router) mapTransportError(ctx context.Context, err error) error {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		r.logger.Warn().Err(err).Msg("Upstream call rejected by circuit breaker")
		return ErrCircuitOpen
	case errors.As(err, &tooLarge):
		return ErrRequestTooLarge
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		return ErrClientClosed
	}

	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}

	uerr := newUnreachableError(err, timeout)
	r.logger.Error().
		Str("error", r.scrubber.scrubString(uerr.Error())).
		Bool("timeout", timeout).
		Msg("Upstream request failed")
	return uerr
}

func outcomeFor(err error) string {
	var uerr *UnreachableError
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "rejected"
	case errors.Is(err, ErrClientClosed):
		return "canceled"
	case errors.As(err, &uerr) && uerr.Timeout:
		return "timeout"
	default:
		return "unreachable"
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrReservedPath):
		return "reserved"
	case errors.Is(err, ErrEmptyPath):
		return "empty"
	default:
		return "invalid"
	}
}

// SplitPath turns an escaped wildcard path into segments, keeping a trailing
// empty segment so "users/" stays distinct from "users"
func SplitPath(escapedPath string) []string {
	trimmed := strings.TrimLeft(escapedPath, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
