package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.Cycle           `json:"cycles,omitempty"`
	Order  []string                   `json:"order,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-dir>",
		Short: "Validate a graph definition",
		Long: `Validate a CUE graph definition without running it.

Checks that every dependency, reducer and transform exists, that names
do not collide, that plain atoms have initial values and that atoms do
not depend on each other in a cycle. All problems are reported, not
just the first.

Exit codes:
  0 - Graph is valid
  1 - Validation errors found
  2 - Command error (directory not found, CUE syntax error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, graphDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, err := ValidateGraphDir(graphDir)
	if err != nil {
		return outputValidateError(formatter, err)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, "✓ Graph valid")
	if opts.Verbose {
		fmt.Fprintf(formatter.Writer, "  Order: %v\n", result.Order)
	}
	return nil
}

// ValidateGraphDir validates the graph in dir. A compile error on a value
// or declaration is reported as a validation error; failures to read the
// directory are returned as errors.
func ValidateGraphDir(dir string) (ValidationResult, error) {
	res, err := LoadGraph(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && isDeclarationError(loadErr.Code) {
			return ValidationResult{Errors: []compiler.ValidationError{{
				Field:   "graph",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			}}}, nil
		}
		return ValidationResult{}, err
	}

	result := ValidationResult{
		Errors: compiler.Validate(res.Spec),
		Cycles: compiler.AnalyzeCycles(res.Spec),
	}
	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Order, _ = compiler.TopoOrder(res.Spec)
	}
	return result, nil
}

func isDeclarationError(code string) bool {
	switch code {
	case ErrCodeInvalidValue, ErrCodeInvalidOn, ErrCodeInvalidMap, ErrCodeInvalidCombine:
		return true
	}
	return false
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateError reports a command-level failure (exit code 2).
func outputValidateError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
}

// outputValidationErrors reports validation failures (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	if len(result.Cycles) > 0 {
		fmt.Fprintln(formatter.Writer, "Cycles:")
		for _, c := range result.Cycles {
			fmt.Fprintf(formatter.Writer, "  %s\n", c.Message)
		}
		fmt.Fprintln(formatter.Writer)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
