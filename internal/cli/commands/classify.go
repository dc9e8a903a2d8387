package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/proxy"
)

// NewClassifyCmd creates the classify command
func NewClassifyCmd() *cobra.Command {
	var (
		authType string
		method   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "classify <path>",
		Short: "Show which credential a path would be forwarded with",
		Example: `  gatewayctl classify /api/devices/summary
  gatewayctl classify users/me --auth-type token --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			router, err := newRouter(cfg)
			if err != nil {
				return err
			}
			return runClassify(cmd.OutOrStdout(), router, classifyInput{
				Path:     args[0],
				Method:   method,
				AuthType: authType,
				JSON:     asJSON,
			})
		},
	}

	cmd.Flags().StringVar(&authType, "auth-type", "", "Value of the x-auth-type header (auto, none, jwt, token)")
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")

	return cmd
}

type classifyInput struct {
	Path     string
	Method   string
	AuthType string
	JSON     bool
}

func runClassify(out io.Writer, router *proxy.Router, in classifyInput) error {
	path, query, _ := strings.Cut(in.Path, "?")
	path = strings.TrimPrefix(strings.TrimPrefix(path, "/"), "api/")

	header := http.Header{}
	if in.AuthType != "" {
		header.Set(authmode.HeaderName, in.AuthType)
	}

	plan, err := router.Plan(&proxy.Request{
		Method:   strings.ToUpper(in.Method),
		Segments: proxy.SplitPath(path),
		RawQuery: query,
		Header:   header,
	})
	if err != nil {
		return describeRejection(err)
	}

	if in.JSON {
		return writeJSON(out, plan)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Method:\t%s\n", plan.Method)
	fmt.Fprintf(w, "Segment:\t%s\n", plan.Segment)
	fmt.Fprintf(w, "Auth mode:\t%s\n", plan.Mode)
	fmt.Fprintf(w, "Decided by:\t%s\n", plan.Source)
	fmt.Fprintf(w, "Upstream:\t%s\n", plan.Target)
	return w.Flush()
}

func describeRejection(err error) error {
	switch {
	case errors.Is(err, proxy.ErrReservedPath):
		return fmt.Errorf("%w: the gateway answers 404 and never forwards it", err)
	case errors.Is(err, proxy.ErrEmptyPath):
		return fmt.Errorf("%w: the gateway answers 404", err)
	case errors.Is(err, proxy.ErrInvalidPath):
		return fmt.Errorf("%w: the gateway answers 400", err)
	case errors.Is(err, proxy.ErrMethodNotAllowed):
		return fmt.Errorf("%w: the gateway answers 405", err)
	}
	return err
}
