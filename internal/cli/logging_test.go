package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_RenamesErrorKey(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, slog.LevelInfo)

	logger.Error("journal record failed", "error", errors.New("disk full"))
	assert.Contains(t, buf.String(), "err=\"disk full\"")
	assert.NotContains(t, buf.String(), "error=")
}

func TestNewLogger_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, slog.LevelInfo)
	logger.Debug("dispatch committed")
	assert.Empty(t, buf.String())

	logger = NewLogger(buf, slog.LevelDebug)
	logger.Debug("dispatch committed", "seq", 2)
	assert.Contains(t, buf.String(), "seq=2")
}

func TestRootCommand_VerboseSetsDebugLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := NewRootCommand()
	errOut := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"-v", "validate", counterDir(t)})
	assert.NoError(t, cmd.Execute())

	slog.Debug("probe")
	assert.Contains(t, errOut.String(), "msg=probe")
}
