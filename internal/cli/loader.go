package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/atomgraph/internal/compiler"
	"github.com/roach88/atomgraph/internal/ir"
)

// LoadResult contains the results of loading a graph directory.
type LoadResult struct {
	Spec      *ir.GraphSpec
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading a graph.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph checks dir, then loads the CUE files in it and compiles their
// top-level graph field. The spec is not validated; see compiler.Validate.
func LoadGraph(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	spec, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Spec:      spec,
		FileCount: len(cueFiles),
	}, nil
}

// BuildGraph loads, validates and builds the graph in dir.
func BuildGraph(dir string) (*compiler.Graph, error) {
	res, err := LoadGraph(dir)
	if err != nil {
		return nil, err
	}
	return compiler.Build(res.Spec)
}

// FindCUEFiles returns the .cue files directly inside dir. Subdirectories
// are separate CUE packages and are not loaded with dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoGraph     = "E008" // No top-level graph field

	// Graph compile errors
	ErrCodeInvalidValue   = "E104" // Float or non-concrete initial value
	ErrCodeInvalidOn      = "E110" // Malformed on clause
	ErrCodeInvalidMap     = "E111" // Malformed map declaration
	ErrCodeInvalidCombine = "E112" // Malformed combine declaration
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "load":
		return ErrCodeLoadFailed
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "graph":
		return ErrCodeNoGraph
	case field == "initial" || strings.HasSuffix(field, ".initial"):
		return ErrCodeInvalidValue
	case strings.Contains(field, ".on"):
		return ErrCodeInvalidOn
	case strings.HasPrefix(field, "maps."):
		return ErrCodeInvalidMap
	case strings.HasPrefix(field, "combines."):
		return ErrCodeInvalidCombine
	default:
		return ErrCodeGeneric
	}
}
