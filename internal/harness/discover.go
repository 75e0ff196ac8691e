package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// GraphNotFoundError is returned when a scenario's graph directory does
// not exist.
type GraphNotFoundError struct {
	Scenario     string
	GraphPath    string
	ResolvedPath string
}

// Error implements the error interface.
func (e *GraphNotFoundError) Error() string {
	return fmt.Sprintf(
		"scenario %q references graph %q which does not exist (resolved to: %s)",
		e.Scenario,
		e.GraphPath,
		e.ResolvedPath,
	)
}

// checkGraph verifies that the scenario's graph directory exists.
func checkGraph(s *Scenario) error {
	info, err := os.Stat(s.Graph)
	if err == nil && info.IsDir() {
		return nil
	}
	resolved, absErr := filepath.Abs(s.Graph)
	if absErr != nil {
		resolved = s.Graph
	}
	return &GraphNotFoundError{
		Scenario:     s.Name,
		GraphPath:    s.Graph,
		ResolvedPath: resolved,
	}
}

// FindScenarios returns the .yaml and .yml files under dir, sorted by
// path. A non-empty filter is a glob matched against the file name
// without its extension. Files under golden/ directories are skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(d.Name(), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}
