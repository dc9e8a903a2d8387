package proxy

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

const redacted = "[REDACTED]"

// Request headers copied to the upstream call. Authorization is handled by
// the auth mode; cookies and the override header never leave the gateway.
var forwardedRequestHeaders = []string{
	"Accept",
	"Accept-Language",
	"Content-Type",
	"User-Agent",
	"If-None-Match",
	"If-Modified-Since",
	"X-Request-ID",
}

// Response headers relayed to the caller
var relayedResponseHeaders = []string{
	"Content-Type",
	"Content-Disposition",
	"Content-Language",
	"Cache-Control",
	"ETag",
	"Expires",
	"Last-Modified",
	"Retry-After",
	"Location",
	"Link",
}

const rateLimitHeaderPrefix = "X-Ratelimit-"

func outboundHeaders(in http.Header) http.Header {
	out := make(http.Header, len(forwardedRequestHeaders)+1)
	for _, name := range forwardedRequestHeaders {
		if values := in.Values(name); len(values) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", "application/json")
	}
	return out
}

// relayHeaders copies the safe subset of upstream headers with the service
// credential scrubbed from every value
func relayHeaders(src http.Header, s *scrubber) http.Header {
	out := make(http.Header)
	keep := func(key string, values []string) {
		for _, v := range values {
			if s.contains(v) {
				v = s.scrubString(v)
			}
			out.Add(key, v)
		}
	}

	for _, name := range relayedResponseHeaders {
		if values := src.Values(name); len(values) > 0 {
			keep(http.CanonicalHeaderKey(name), values)
		}
	}
	for key, values := range src {
		if strings.HasPrefix(http.CanonicalHeaderKey(key), rateLimitHeaderPrefix) {
			keep(http.CanonicalHeaderKey(key), values)
		}
	}
	return out
}

// scrubber removes every known encoding of the service credential
type scrubber struct {
	secrets [][]byte
}

func newScrubber(token string) *scrubber {
	s := &scrubber{}
	if token == "" {
		return s
	}
	seen := map[string]bool{}
	for _, v := range []string{token, url.QueryEscape(token), url.PathEscape(token)} {
		if !seen[v] {
			seen[v] = true
			s.secrets = append(s.secrets, []byte(v))
		}
	}
	return s
}

func (s *scrubber) contains(v string) bool {
	for _, secret := range s.secrets {
		if strings.Contains(v, string(secret)) {
			return true
		}
	}
	return false
}

func (s *scrubber) scrubString(v string) string {
	for _, secret := range s.secrets {
		v = strings.ReplaceAll(v, string(secret), redacted)
	}
	return v
}

func (s *scrubber) scrub(body []byte) ([]byte, bool) {
	changed := false
	for _, secret := range s.secrets {
		if bytes.Contains(body, secret) {
			body = bytes.ReplaceAll(body, secret, []byte(redacted))
			changed = true
		}
	}
	return body, changed
}
