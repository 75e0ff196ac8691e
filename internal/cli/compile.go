package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/atomgraph/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled graph plus its content hash.
type CompilationResult struct {
	Graph *ir.GraphSpec `json:"graph"`
	Hash  string        `json:"hash"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph-dir>",
		Short: "Compile a CUE graph definition to IR",
		Long: `Compile the CUE graph definition in a directory to its IR form.

The compiler reads the top-level graph field, converts initial values to
IR (floats are rejected) and sorts every declaration by name. The output
is stable, so its hash identifies the graph in journaled sessions.

Examples:
  atomgraph compile ./graphs/counter
  atomgraph compile ./graphs/counter --format json -o counter.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, graphDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, err := LoadGraph(graphDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, graphDir)

	hash, err := ir.GraphHash(*res.Spec)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "hashing graph", err)
	}
	result := CompilationResult{Graph: res.Spec, Hash: hash}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	spec := res.Spec
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d action(s), %d atom(s), %d map(s), %d combine(s)\n\n",
		len(spec.Actions), len(spec.Atoms), len(spec.Maps), len(spec.Combines))

	if len(spec.Actions) > 0 {
		fmt.Fprintln(formatter.Writer, "Actions:")
		for _, a := range spec.Actions {
			fmt.Fprintf(formatter.Writer, "  %s\n", a)
		}
		fmt.Fprintln(formatter.Writer)
	}
	if len(spec.Atoms) > 0 {
		fmt.Fprintln(formatter.Writer, "Atoms:")
		for _, a := range spec.Atoms {
			fmt.Fprintf(formatter.Writer, "  %s: %d dependenc%s\n", a.Name, len(a.On), plural(len(a.On), "y", "ies"))
		}
		fmt.Fprintln(formatter.Writer)
	}
	if len(spec.Maps) > 0 {
		fmt.Fprintln(formatter.Writer, "Maps:")
		for _, m := range spec.Maps {
			fmt.Fprintf(formatter.Writer, "  %s: %s → %s\n", m.Name, m.Source, m.Transform)
		}
		fmt.Fprintln(formatter.Writer)
	}
	if len(spec.Combines) > 0 {
		fmt.Fprintln(formatter.Writer, "Combines:")
		for _, c := range spec.Combines {
			fmt.Fprintf(formatter.Writer, "  %s: %v\n", c.Name, c.Fields)
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "Hash: %s\n", hash)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", opts.Output)
	}
	return nil
}

// outputLoadError reports a LoadGraph failure. These are command-level
// errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	if formatter.JSON() {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		if loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", loadErr.Code, loadErr.Message)
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message), nil)
}

// writeIRToFile writes the compiled graph as indented JSON. Canonical JSON
// without indentation is used only for hashing.
func writeIRToFile(result CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
