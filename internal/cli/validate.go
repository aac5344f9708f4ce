package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/course"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Watch bool // revalidate on every save
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Course string       `json:"course,omitempty"`
	Pages  int          `json:"pages,omitempty"`
	Errors []IssueEntry `json:"errors,omitempty"`
}

// IssueEntry is one validation problem in report form.
type IssueEntry struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <course.json>",
		Short: "Validate a course document",
		Long: `Validate a course document against the course schema.

Checks the page types and their fields, unique page ids and
answerable questions. Every problem is reported, not only the first.

With --watch the document is revalidated each time it is saved,
until interrupted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return watchValidate(cmd.Context(), opts, args[0], cmd)
			}
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "revalidate when the file changes")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "course not found: "+path, nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "read course", err)
	}
	slog.Debug("validating course", "path", path, "bytes", len(data))

	if errs := course.Validate(data, path); len(errs) > 0 {
		result := ValidationResult{Errors: issueEntries(errs)}
		if err := formatter.Rejected(result, ErrCodeInvalid, result.Errors[0].Message); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	c, err := course.Parse(data, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "parse course", err)
	}
	return formatter.Success(ValidationResult{Valid: true, Course: c.Meta.Title, Pages: len(c.Pages)})
}

// watchValidate validates once, then again after every save. Failures are
// reported and watching continues; only command errors stop it.
func watchValidate(ctx context.Context, opts *ValidateOptions, path string, cmd *cobra.Command) error {
	check := func() {
		if err := runValidate(opts, path, cmd); err != nil && GetExitCode(err) != ExitFailure {
			slog.Error("validate", "path", path, "error", err)
		}
	}

	check()
	if err := config.WatchFile(ctx, path, config.DefaultDebounce, check); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

func issueEntries(errs course.ValidationErrors) []IssueEntry {
	entries := make([]IssueEntry, len(errs))
	for i, e := range errs {
		entries[i] = IssueEntry{Path: e.Path, Message: e.Message}
		if e.Pos.IsValid() {
			entries[i].Line = e.Pos.Line()
		}
		if entries[i].Path == "" {
			entries[i].Path = "course"
		}
	}
	return entries
}

func (r ValidationResult) writeText(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ Course valid: %s (%d pages)\n", r.Course, r.Pages)
		return
	}

	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "line %d\n", e.Line)
		}
		fmt.Fprintf(w, "  %s: %s\n\n", e.Path, e.Message)
	}
}
