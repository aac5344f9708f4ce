package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/axiom/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // script filter (glob pattern)
}

// ScriptResult holds the result of a single script run.
type ScriptResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scripts []ScriptResult `json:"scripts"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scripts-dir>",
		Short: "Run every learner script in a directory",
		Long: `Run every learner script in a directory on in-memory sessions.

A script passes when its step expectations and assertions hold and,
if golden/<name>.golden exists next to it, the suspend data it leaves
behind matches that file byte for byte.

Exit codes:
  0 - All scripts passed
  1 - One or more scripts failed
  2 - Command error (invalid paths, etc.)

Examples:
  axiom test ./scripts
  axiom test ./scripts --filter "knots_*"
  axiom test ./scripts --update
  axiom test ./scripts --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scripts by glob pattern")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, scriptsDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scriptsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scripts directory not found: %s", scriptsDir))
	}

	files, err := findScriptFiles(scriptsDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scripts", err)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scripts: []ScriptResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scripts found.")
		return nil
	}

	result := TestResult{
		Scripts: make([]ScriptResult, 0, len(files)),
		Total:   len(files),
	}
	for _, file := range files {
		sr := runScript(ctx, file, opts)
		result.Scripts = append(result.Scripts, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			printScriptResult(cmd, sr, opts.Update)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScriptFiles finds all YAML script files in a directory.
func findScriptFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScript loads and runs one script, then checks or updates its golden file.
func runScript(ctx context.Context, file string, opts *TestOptions) ScriptResult {
	script, err := harness.LoadScript(file)
	if err != nil {
		return ScriptResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load script: %v", err)},
		}
	}

	result, err := harness.Run(ctx, script)
	if err != nil {
		return ScriptResult{
			Name:   script.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	sr := ScriptResult{Name: script.Name, Pass: result.Pass, Errors: result.Errors}
	goldenPath := goldenFilePath(file, script.Name)

	if opts.Update {
		if err := updateGoldenFile(goldenPath, result); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return sr
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		// No golden file - assertions decide alone
		return sr
	}
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		return sr
	}
	if !bytes.Equal(want, []byte(result.SuspendData)) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "suspend data does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns golden/<name>.golden next to the script file.
func goldenFilePath(scriptFile, name string) string {
	return filepath.Join(filepath.Dir(scriptFile), "golden", name+".golden")
}

// updateGoldenFile writes the run's suspend data as the golden file.
func updateGoldenFile(path string, result *harness.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(result.SuspendData), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScriptResult(cmd *cobra.Command, sr ScriptResult, updated bool) {
	w := cmd.OutOrStdout()
	switch {
	case sr.Pass && updated:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
	case sr.Pass:
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
	default:
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed", result.Failed))
	}
	return nil
}

// outputTestText prints the totals line.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed", result.Failed))
	}
	return nil
}
