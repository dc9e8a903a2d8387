package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		prefix  string
		want    string
	}{
		{name: "appends prefix", baseURL: "https://api.example.org", prefix: "/api/v2", want: "https://api.example.org/api/v2"},
		{name: "trailing slash removed", baseURL: "https://api.example.org/", prefix: "/api/v2", want: "https://api.example.org/api/v2"},
		{name: "prefix already present", baseURL: "https://api.example.org/api/v2/", prefix: "/api/v2", want: "https://api.example.org/api/v2"},
		{name: "prefix without leading slash", baseURL: "https://api.example.org", prefix: "api/v2", want: "https://api.example.org/api/v2"},
		{name: "empty prefix disables", baseURL: "http://localhost:9000/", prefix: "", want: "http://localhost:9000"},
		{name: "empty base url", baseURL: "  ", prefix: "/api/v2", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeBaseURL(tt.baseURL, tt.prefix); got != tt.want {
				t.Errorf("NormalizeBaseURL(%q, %q) = %q, want %q", tt.baseURL, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.org")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org/api/v2", cfg.Upstream.BaseURL)
	assert.Equal(t, "query", cfg.Upstream.TokenPlacement)
	assert.Equal(t, "token", cfg.Upstream.TokenParam)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.True(t, cfg.Upstream.BreakerEnabled)
	assert.False(t, cfg.Upstream.HasAPIToken())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "auth", cfg.Routing.ReservedSegment)
	assert.Equal(t, "external", cfg.Routing.ExternalSegment)
	assert.Equal(t, 4096, cfg.Routing.CacheLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "http://upstream.local:3000")
	t.Setenv("API_PREFIX", "")
	t.Setenv("API_TOKEN", " s3cret ")
	t.Setenv("API_TOKEN_PLACEMENT", "HEADER")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("UPSTREAM_BREAKER_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.org, https://b.example.org")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("AUTH_RESERVED_SEGMENT", "NextAuth")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://upstream.local:3000", cfg.Upstream.BaseURL)
	assert.Equal(t, "s3cret", cfg.Upstream.APIToken)
	assert.Equal(t, "header", cfg.Upstream.TokenPlacement)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Upstream.BreakerEnabled)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.CORSAllowedOrigins)
	assert.InDelta(t, 2.5, cfg.Server.RateLimitRPS, 0.0001)
	assert.Equal(t, "nextauth", cfg.Routing.ReservedSegment)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing base url", env: map[string]string{}},
		{name: "invalid base url", env: map[string]string{"API_BASE_URL": "not a url"}},
		{name: "bad duration", env: map[string]string{"API_BASE_URL": "https://api.example.org", "UPSTREAM_TIMEOUT": "soon"}},
		{name: "bad placement", env: map[string]string{"API_BASE_URL": "https://api.example.org", "API_TOKEN_PLACEMENT": "cookie"}},
		{name: "bad boolean", env: map[string]string{"API_BASE_URL": "https://api.example.org", "UPSTREAM_BREAKER_ENABLED": "maybe"}},
		{name: "reserved equals external", env: map[string]string{"API_BASE_URL": "https://api.example.org", "EXTERNAL_SEGMENT": "auth"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_BASE_URL", "")
			t.Setenv("NEXT_PUBLIC_API_BASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}

func TestFromEnv_ErrorDoesNotLeakToken(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "")
	t.Setenv("API_TOKEN", "very-secret-value")

	_, err := FromEnv()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret-value")
}
