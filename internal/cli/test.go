package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/harness"
)

// ErrCodeTestFailed marks a test run with failing scenarios.
const ErrCodeTestFailed = "E_TEST_FAILED"

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run scenario files against their graphs.

Each scenario names its graph directory (relative to the scenario file),
dispatches its steps and checks step expectations and assertions. When
golden/<scenario>.golden exists next to a scenario file, the trace must
match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  atomgraph test ./scenarios
  atomgraph test ./scenarios --filter "counter_*"
  atomgraph test ./scenarios --update
  atomgraph test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return formatter.fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}

	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScanError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Encode(CLIResponse{Status: "ok", Data: result})
		}
		formatter.Printf("No scenarios found.\n")
		return nil
	}

	for _, file := range files {
		sr := runScenario(opts, file)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		printScenario(formatter, sr)
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// runScenario loads, runs and golden-checks one scenario file.
func runScenario(opts *TestOptions, file string) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(sr, fmt.Sprintf("failed to load scenario: %v", err))
	}
	sr.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(sr, fmt.Sprintf("execution failed: %v", err))
	}
	slog.Debug("scenario executed", "scenario", scenario.Name, "dispatches", len(result.Trace), "pass", result.Pass)

	goldenPath := harness.GoldenPath(file)
	switch {
	case opts.Update:
		if err := harness.WriteGolden(goldenPath, scenario, result); err != nil {
			return failed(sr, fmt.Sprintf("failed to update golden file: %v", err))
		}
		sr.Golden = "updated"
	case fileExists(goldenPath):
		match, err := harness.CompareGolden(goldenPath, scenario, result)
		if err != nil {
			return failed(sr, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return failed(sr, "trace does not match golden file (run with --update to regenerate)")
		}
		sr.Golden = "match"
	}

	if !result.Pass {
		return failed(sr, result.Errors...)
	}
	sr.Pass = true
	return sr
}

func failed(sr ScenarioResult, errs ...string) ScenarioResult {
	sr.Pass = false
	sr.Errors = append(sr.Errors, errs...)
	return sr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printScenario(f *OutputFormatter, sr ScenarioResult) {
	if sr.Pass {
		suffix := ""
		if sr.Golden == "updated" {
			suffix = " (golden updated)"
		}
		f.Printf("✓ %s%s\n", sr.Name, suffix)
		return
	}
	f.Printf("✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		f.Printf("  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := f.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(f *OutputFormatter, result TestResult) error {
	f.Printf("\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	f.Printf("✓ All scenarios passed\n")
	return nil
}
