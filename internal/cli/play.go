package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/app"
	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/harness"
	"github.com/roach88/axiom/internal/launch"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Session      string // session DSN, overrides config
	Registration string // registration id, overrides config
	Launch       string // LMS launch URL or query string
	Quiet        bool   // suppress frames
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <script.yaml>",
		Short: "Play a scripted learner session",
		Long: `Play a scripted learner session against a course.

Each step of the script is applied through the application's event
loop and every new frame is printed. The final summary and any failed
expectations follow.

Without --session the script runs on an in-memory session seeded from
the script. With a sqlite: or redis:// session the run is persisted
under --registration and can be inspected with "axiom session show".

Exit codes:
  0 - Script passed
  1 - An expectation or assertion failed
  2 - Command error (script not found, backend unreachable, etc.)

Examples:
  axiom play ./scripts/knots_pass.yaml
  axiom play ./scripts/knots_pass.yaml --session sqlite:./sessions.db --registration reg-1
  axiom play ./scripts/knots_pass.yaml --launch "?registration=reg-1&learner_id=ada"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session backend DSN (memory:, sqlite:<path>, redis://host:port/db)")
	cmd.Flags().StringVar(&opts.Registration, "registration", "", "registration id for durable sessions")
	cmd.Flags().StringVar(&opts.Launch, "launch", "", "LMS launch URL or query string")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print frames")

	return cmd
}

// playReport is the outcome of one scripted run.
type playReport struct {
	name string
	*harness.Result
}

func runPlay(ctx context.Context, opts *PlayOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	script, err := harness.LoadScript(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScript, "failed to load script", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	runOpts := []harness.Option{harness.WithConfig(cfg)}
	if opts.Launch != "" {
		params, err := launch.FromURL(opts.Launch)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid launch parameters", err)
		}
		slog.Info("launch", "params", params)
		cfg.ApplyLaunch(params)
		runOpts = append(runOpts, harness.WithLearner(params.LearnerID()))
	}
	applyPlayFlags(cfg, opts)

	if cfg.Session != "" && !strings.HasPrefix(cfg.Session, "memory:") {
		sess, err := app.OpenSession(ctx, cfg.Session, cfg.Registration, time.Now)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to open session", err)
		}
		defer sess.Close()
		slog.Debug("session opened", "backend", sess.Backend, "registration", cfg.Registration)
		runOpts = append(runOpts, harness.WithBridge(sess.Bridge))
	}

	if !formatter.isJSON() && !opts.Quiet {
		runOpts = append(runOpts, harness.WithOutput(formatter.Writer))
	}

	result, err := harness.Run(ctx, script, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "run failed", err)
	}

	if err := formatter.Success(playReport{name: script.Name, Result: result}); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("script %s failed with %d error(s)", script.Name, len(result.Errors)))
	}
	return nil
}

// applyPlayFlags lets command flags win over config and launch values.
func applyPlayFlags(cfg *config.Config, opts *PlayOptions) {
	if opts.Session != "" {
		cfg.Session = opts.Session
	}
	if opts.Registration != "" {
		cfg.Registration = opts.Registration
	}
}

// writeText prints the run outcome under the frames.
func (r playReport) writeText(w io.Writer) {
	s := r.Summary
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.name)
	fmt.Fprintf(w, "  page %d of %d, %d%% complete, score %d", s.Position+1, s.Total, s.Percent, s.Score)
	if s.Passing {
		fmt.Fprint(w, " (passing)")
	}
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
