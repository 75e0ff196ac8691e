package cli

import (
	"io"
	"log/slog"
)

// NewLogger returns the CLI's text logger writing to w.
// The "error" key is shortened to "err" so engine and CLI logs agree.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}
