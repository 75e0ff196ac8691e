package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/testutil"
)

func TestCompileCounter(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), counterDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 3 action(s), 2 atom(s), 1 map(s), 1 combine(s)")
	assert.Contains(t, out, "  Count: 2 dependencies")
	assert.Contains(t, out, "  Todos: 1 dependency")
	assert.Contains(t, out, "  Double: Count → double")
	assert.Contains(t, out, "  Dash: [Count Double]")
	assert.Contains(t, out, "Hash: ")
}

func TestCompileCounterJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), counterDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data.Graph)
	assert.Equal(t, []string{"inc", "setCount", "toggleTodo"}, resp.Data.Graph.Actions)
	assert.NotEmpty(t, resp.Data.Hash)
}

func TestCompileHashIsStable(t *testing.T) {
	first, err := LoadGraph(counterDir(t))
	require.NoError(t, err)
	second, err := LoadGraph(counterDir(t))
	require.NoError(t, err)

	h1, err := ir.GraphHash(*first.Spec)
	require.NoError(t, err)
	h2, err := ir.GraphHash(*second.Spec)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), counterDir(t), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotNil(t, result.Graph)
	assert.Len(t, result.Graph.Atoms, 2)
	assert.NotEmpty(t, result.Hash)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not found")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no CUE files found")
}

func TestCompileNoGraphField(t *testing.T) {
	dir := testutil.WriteGraphDir(t, "package empty\n\nother: 1\n")

	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoGraph)
}

func TestCompileSyntaxError(t *testing.T) {
	dir := testutil.WriteGraphDir(t, "package bad\n\ngraph: {\n")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Contains(t, []string{ErrCodeLoadFailed, ErrCodeBuildFailed}, resp.Error.Code)
}

func TestCompileFloatRejection(t *testing.T) {
	dir := testutil.WriteGraphDir(t, `package prices

graph: {
	actions: ["set"]
	atoms: Price: {initial: 1.5, on: [{action: "set", reduce: "set"}]}
}
`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeInvalidValue)
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "float values are forbidden")
}

func TestCompileVerboseOutput(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text", Verbose: true})
	errBuf := &bytes.Buffer{}
	cmd.SetErr(errBuf)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{counterDir(t)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Found 1 CUE file(s)")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "root.cue"), "package test")
	testutil.WriteFile(t, filepath.Join(dir, "notcue.txt"), "not a cue file")
	testutil.WriteFile(t, filepath.Join(dir, "subdir", "nested.cue"), "package test")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "root.cue")}, files, "subdirectories are separate packages")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"load", ErrCodeLoadFailed},
		{"cue", ErrCodeBuildFailed},
		{"graph", ErrCodeNoGraph},
		{"initial", ErrCodeInvalidValue},
		{"atoms.Count.initial", ErrCodeInvalidValue},
		{"atoms.Count.on[0]", ErrCodeInvalidOn},
		{"maps.Double.source", ErrCodeInvalidMap},
		{"combines.Dash.fields", ErrCodeInvalidCombine},
		{"unknown", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"}
	assert.Equal(t, "E003: no CUE files found in x", err.Error())
}

func TestBuildGraph(t *testing.T) {
	g, err := BuildGraph(counterDir(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Count", "Double", "Dash", "Todos"}, g.Order)

	_, err = BuildGraph(testutil.WriteGraphDir(t, testutil.InvalidGraph))
	assert.Error(t, err)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "y", plural(1, "y", "ies"))
	assert.Equal(t, "ies", plural(0, "y", "ies"))
	assert.Equal(t, "ies", plural(2, "y", "ies"))
}
