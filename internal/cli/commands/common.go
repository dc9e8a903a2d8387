package commands

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/proxy"
)

// loadConfig is swapped in tests
var loadConfig = config.Load

// loadTable returns the route table the server would use for cfg
func loadTable(cfg *config.Config) (authmode.Table, error) {
	return authmode.TableFor(cfg.Routing.TableFile)
}

// newRouter builds a proxy router from the gateway configuration.
// It is only used for planning; nothing is sent upstream.
func newRouter(cfg *config.Config) (*proxy.Router, error) {
	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	router, err := proxy.New(proxy.OptionsFromConfig(cfg), authmode.NewClassifier(table, cfg.Routing.CacheLimit), nil, zerolog.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return router, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
