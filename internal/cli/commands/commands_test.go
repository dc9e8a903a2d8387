package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/proxy"
)

const testToken = "svc-cli-secret-token"

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("API_TOKEN", testToken)
	t.Setenv("ROUTE_TABLE_FILE", "")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func testRouter(t *testing.T, cfg *config.Config) *proxy.Router {
	t.Helper()
	router, err := newRouter(cfg)
	require.NoError(t, err)
	return router
}

func TestClassify_Text(t *testing.T) {
	router := testRouter(t, testConfig(t, "https://api.example.org"))

	var out bytes.Buffer
	err := runClassify(&out, router, classifyInput{Path: "/api/devices/summary?site=kla", Method: "get"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "token")
	assert.Contains(t, text, "table")
	assert.Contains(t, text, "https://api.example.org/api/v2/devices/summary?")
	assert.NotContains(t, text, testToken)
}

func TestClassify_JSON(t *testing.T) {
	router := testRouter(t, testConfig(t, "https://api.example.org"))

	tests := []struct {
		path     string
		authType string
		want     authmode.Mode
		source   authmode.Source
	}{
		{"users/me", "", authmode.ModeJWT, authmode.SourceTable},
		{"widgets", "", authmode.ModeNone, authmode.SourceTable},
		{"users/me", "token", authmode.ModeToken, authmode.SourceOverride},
		{"external/widgets", "", authmode.ModeToken, authmode.SourceOverride},
	}

	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.authType, func(t *testing.T) {
			var out bytes.Buffer
			err := runClassify(&out, router, classifyInput{Path: tt.path, Method: http.MethodGet, AuthType: tt.authType, JSON: true})
			require.NoError(t, err)

			var plan proxy.Plan
			require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
			assert.Equal(t, tt.want, plan.Mode)
			assert.Equal(t, tt.source, plan.Source)
			assert.NotContains(t, out.String(), testToken)
		})
	}
}

func TestClassify_Rejections(t *testing.T) {
	router := testRouter(t, testConfig(t, "https://api.example.org"))

	tests := []struct {
		input classifyInput
		want  error
	}{
		{classifyInput{Path: "/api/auth/session", Method: http.MethodGet}, proxy.ErrReservedPath},
		{classifyInput{Path: "/api/", Method: http.MethodGet}, proxy.ErrEmptyPath},
		{classifyInput{Path: "devices/../users", Method: http.MethodGet}, proxy.ErrInvalidPath},
		{classifyInput{Path: "devices", Method: "TRACE"}, proxy.ErrMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.input.Path, func(t *testing.T) {
			var out bytes.Buffer
			err := runClassify(&out, router, tt.input)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, out.String())
		})
	}
}

func TestRoutes_BuiltIn(t *testing.T) {
	cfg := testConfig(t, "https://api.example.org")
	table, err := loadTable(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runRoutes(&out, cfg, table, false))

	text := out.String()
	assert.Contains(t, text, "built-in")
	assert.Contains(t, text, "users")
	assert.Contains(t, text, "devices")
	assert.Contains(t, text, "rejected (404)")
}

func TestRoutes_FromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "routes.yaml")
	require.NoError(t, os.WriteFile(file, []byte("identity: [Profiles]\ntelemetry: [sensors]\n"), 0o600))

	cfg := testConfig(t, "https://api.example.org")
	cfg.Routing.TableFile = file
	table, err := loadTable(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runRoutes(&out, cfg, table, true))

	var view routesView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, file, view.Source)
	assert.Equal(t, []string{"profiles"}, view.Table.Identity)
	assert.Equal(t, []string{"sensors"}, view.Table.Telemetry)
	assert.Equal(t, authmode.ModeNone, view.Unmatched)
}

func TestProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("token"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(int(status.Load()))
	}))
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)

	var out bytes.Buffer
	require.NoError(t, runProbe(context.Background(), &out, cfg, false))
	assert.Contains(t, out.String(), "Upstream is ready")

	status.Store(http.StatusServiceUnavailable)
	out.Reset()
	err := runProbe(context.Background(), &out, cfg, true)
	require.ErrorIs(t, err, errNotReady)
	assert.Contains(t, out.String(), `"ready": false`)
}

func TestRootCommand_UsesLoadedConfig(t *testing.T) {
	cfg := testConfig(t, "https://api.example.org")
	original := loadConfig
	loadConfig = func() (*config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = original })

	cmd := NewClassifyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analytics/dashboard", "--json"})
	require.NoError(t, cmd.Execute())

	var plan proxy.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	assert.Equal(t, authmode.ModeToken, plan.Mode)
	assert.Equal(t, "analytics", plan.Segment)
}
