package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/app"
)

// SessionOptions holds flags shared by the session subcommands.
type SessionOptions struct {
	*RootOptions
	Session      string
	Registration string
}

// SessionReport is the stored state of one registration.
type SessionReport struct {
	Registration string            `json:"registration"`
	Attempts     int               `json:"attempts"`
	Fields       map[string]string `json:"fields"`
}

// NewSessionCommand creates the session command and its subcommands.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear stored learner sessions",
		Long: `Inspect or clear learner sessions kept by a durable backend.

The backend is a sqlite:<path> or redis://host:port/db DSN given with
--session, or the session configured in the config file.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Session, "session", "", "session backend DSN (sqlite:<path>, redis://host:port/db)")
	cmd.PersistentFlags().StringVar(&opts.Registration, "registration", "", "registration id")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List stored registrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd.Context(), opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the stored fields of a registration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(cmd.Context(), opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "reset",
		Short:         "Delete the stored session of a registration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionReset(cmd.Context(), opts, cmd)
		},
	})

	return cmd
}

// registrationList is the result of session list.
type registrationList struct {
	Registrations []string `json:"registrations"`
}

// resetReport is the result of session reset.
type resetReport struct {
	Registration string `json:"registration"`
	Status       string `json:"status"`
}

// openBackend resolves the DSN from the flag or config and connects.
func openBackend(ctx context.Context, opts *SessionOptions, formatter *OutputFormatter) (app.Backend, error) {
	dsn := opts.Session
	if dsn == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return nil, err
		}
		dsn = cfg.Session
		if opts.Registration == "" {
			opts.Registration = cfg.Registration
		}
	}

	backend, err := app.OpenBackend(ctx, dsn)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeSession, "failed to open session backend", err)
	}
	slog.Debug("session backend opened", "dsn", dsn)
	return backend, nil
}

func requireRegistration(opts *SessionOptions, formatter *OutputFormatter) error {
	if opts.Registration != "" {
		return nil
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--registration is required", nil)
}

func runSessionList(ctx context.Context, opts *SessionOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	backend, err := openBackend(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer backend.Close()

	regs, err := backend.Registrations(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to list registrations", err)
	}
	if regs == nil {
		regs = []string{}
	}
	sort.Strings(regs)
	return formatter.Success(registrationList{Registrations: regs})
}

func runSessionShow(ctx context.Context, opts *SessionOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	backend, err := openBackend(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := requireRegistration(opts, formatter); err != nil {
		return err
	}

	fields, err := backend.LoadFields(ctx, opts.Registration)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to load session", err)
	}
	if len(fields) == 0 {
		msg := fmt.Sprintf("no stored session for registration %q", opts.Registration)
		return formatter.Fail(ExitFailure, ErrCodeNoSuchUser, msg, nil)
	}
	attempts, err := backend.Attempts(ctx, opts.Registration)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to count attempts", err)
	}

	return formatter.Success(SessionReport{
		Registration: opts.Registration,
		Attempts:     attempts,
		Fields:       fields,
	})
}

func runSessionReset(ctx context.Context, opts *SessionOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	backend, err := openBackend(ctx, opts, formatter)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := requireRegistration(opts, formatter); err != nil {
		return err
	}

	if err := backend.DeleteRegistration(ctx, opts.Registration); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSession, "failed to reset session", err)
	}
	return formatter.Success(resetReport{Registration: opts.Registration, Status: "reset"})
}

func (l registrationList) writeText(w io.Writer) {
	if len(l.Registrations) == 0 {
		fmt.Fprintln(w, "No registrations stored.")
		return
	}
	for _, r := range l.Registrations {
		fmt.Fprintln(w, r)
	}
}

func (r SessionReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "Registration: %s\n", r.Registration)
	fmt.Fprintf(w, "Attempts: %d\n", r.Attempts)
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, r.Fields[name])
	}
}

func (r resetReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "✓ Session reset: %s\n", r.Registration)
}
