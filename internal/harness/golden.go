package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/testutil"
)

// Snapshot renders a scenario's trace as canonical JSON:
//
//	{"scenario":...,"session":...,"trace":[{"changed":[...],"hash":...,"seq":1,"type":...}]}
//
// Attached and detached lists appear only on records that carry them.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"type":    ev.Type,
			"changed": stringsToAny(ev.Changed),
			"hash":    ev.Hash,
		}
		if len(ev.Attached) > 0 {
			m["attached"] = stringsToAny(ev.Attached)
		}
		if len(ev.Detached) > 0 {
			m["detached"] = stringsToAny(ev.Detached)
		}
		trace[i] = m
	}

	session := scenario.Session
	if session == "" {
		session = testutil.DefaultSession
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": scenario.Name,
		"session":  session,
		"trace":    trace,
	})
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// GoldenPath returns the golden file for a scenario file: a golden/
// directory next to it, named after the file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden writes the result's snapshot to path.
func WriteGolden(path string, scenario *Scenario, result *Result) error {
	data, err := Snapshot(scenario, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the result's snapshot matches the golden
// file at path byte for byte.
func CompareGolden(path string, scenario *Scenario, result *Result) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	current, err := Snapshot(scenario, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return bytes.Equal(golden, current), nil
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden. opts override the goldie
// defaults.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario, result, opts...)
}

// AssertGolden compares an existing result's trace against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	opts = append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)
	g := goldie.New(t, opts...)
	g.Assert(t, scenario.Name, data)
	return nil
}
