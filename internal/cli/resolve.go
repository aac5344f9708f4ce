package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/app"
	"github.com/roach88/axiom/internal/router"
)

// ResolveResult describes how a path resolves against the route table.
type ResolveResult struct {
	Path      string            `json:"path"`
	URL       string            `json:"url"`
	CleanPath string            `json:"clean_path"`
	Slug      string            `json:"slug"`
	View      string            `json:"view"`
	Params    map[string]string `json:"params,omitempty"`
	DataKey   string            `json:"data_key,omitempty"`
	Guarded   bool              `json:"guarded,omitempty"`
	Fallback  bool              `json:"fallback,omitempty"`
	Depth     int               `json:"depth"`
	Position  int               `json:"position"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Show how a URL path resolves to a route",
		Long: `Show how a URL path resolves against the configured route table.

Prints the slug, the view path, extracted parameters and the depth and
position used to pick the transition direction. A path that matches no
route reports the "slug/slug" view guess as a fallback.

Examples:
  axiom resolve /course
  axiom resolve /app/stats/ada --config axiom.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return err
	}

	table := app.RouteTable(cfg)
	res := table.Resolve(cfg.BasePath, path)
	slog.Debug("resolved", "path", path, "base", cfg.BasePath, "slug", res.Slug)

	result := ResolveResult{
		Path:      path,
		URL:       router.URL(cfg.BasePath, res.CleanPath),
		CleanPath: res.CleanPath,
		Slug:      res.Slug,
		View:      res.Route.ViewPath,
		DataKey:   res.Route.DataKey,
		Fallback:  res.Fallback,
		Depth:     table.Depth(res.Slug),
		Position:  table.Position(res.Slug),
	}
	if len(res.Params) > 0 {
		result.Params = res.Params
	}
	if rc, ok := cfg.Routes[res.Slug]; ok {
		result.Guarded = rc.Guarded
	}
	return formatter.Success(result)
}

func (r ResolveResult) writeText(w io.Writer) {
	fmt.Fprintf(w, "Path:     %s\n", r.Path)
	fmt.Fprintf(w, "URL:      %s\n", r.URL)
	fmt.Fprintf(w, "Slug:     %s\n", r.Slug)
	view := r.View
	if r.Fallback {
		view += " (fallback)"
	}
	fmt.Fprintf(w, "View:     %s\n", view)
	if r.DataKey != "" {
		fmt.Fprintf(w, "Data key: %s\n", r.DataKey)
	}
	if r.Guarded {
		fmt.Fprintln(w, "Guarded:  yes")
	}
	fmt.Fprintf(w, "Depth:    %d\n", r.Depth)
	fmt.Fprintf(w, "Position: %d\n", r.Position)

	names := make([]string, 0, len(r.Params))
	for name := range r.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  :%s = %s\n", name, r.Params[name])
	}
}
