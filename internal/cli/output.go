package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess      = 0 // every check held
	ExitFailure      = 1 // a script, course or registration failed its checks
	ExitCommandError = 2 // the command could not run at all
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric    = "E001"
	ErrCodeNotFound   = "E005" // file or directory missing
	ErrCodeInvalid    = "E010" // course document failed validation
	ErrCodeScript     = "E020" // script could not be loaded
	ErrCodeSession    = "E030" // session backend unreachable or failing
	ErrCodeNoSuchUser = "E031" // registration has no stored session
)

// ExitError carries the exit code main should use for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that carry no
// ExitError count as ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope of every --format json result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// report is a command result. JSON output encodes the value itself; text
// output is whatever writeText prints.
type report interface {
	writeText(w io.Writer)
}

// OutputFormatter writes command results and errors to stdout in the
// format chosen with --format. Diagnostics go through slog instead.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool // text errors also print their details
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Success writes r as the command's result.
func (f *OutputFormatter) Success(r report) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: r})
	}
	r.writeText(f.Writer)
	return nil
}

// Rejected writes r as the result of a run whose checks failed. JSON output
// carries both r and an error with code and message.
func (f *OutputFormatter) Rejected(r report, code, message string) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Data:   r,
			Error:  &CLIError{Code: code, Message: message},
		})
	}
	r.writeText(f.Writer)
	return nil
}

// Error writes a bare error under code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail writes message (and err, when set) under code and returns the
// ExitError the command should return.
func (f *OutputFormatter) Fail(exit int, code, message string, err error) error {
	exitErr := WrapExitError(exit, message, err)
	_ = f.Error(code, exitErr.Error(), nil)
	return exitErr
}
