package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/atomgraph/internal/atom"
)

// RuntimeError is an error raised by the engine itself, as opposed to a
// reducer error, which is returned unmodified.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the sequence number the error relates to, or 0.
	Seq int64

	// EventType is the event being processed, if any.
	EventType atom.ID

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCascadeExceeded: listeners kept dispatching past the cascade limit.
	ErrCodeCascadeExceeded RuntimeErrorCode = "CASCADE_EXCEEDED"

	// ErrCodeStopped: the engine no longer accepts events.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"

	// ErrCodeJournalFailed: a committed dispatch could not be journaled.
	ErrCodeJournalFailed RuntimeErrorCode = "JOURNAL_FAILED"

	// ErrCodeReplayDiverged: a replayed dispatch did not reproduce its record.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Seq != 0 && e.EventType != "" {
		msg = fmt.Sprintf("%s (seq=%d, type=%s)", msg, e.Seq, e.EventType)
	} else if e.EventType != "" {
		msg = fmt.Sprintf("%s (type=%s)", msg, e.EventType)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCascadeError reports whether err is a cascade limit error.
func IsCascadeError(err error) bool { return hasCode(err, ErrCodeCascadeExceeded) }

// IsStoppedError reports whether err was caused by a stopped engine.
func IsStoppedError(err error) bool { return hasCode(err, ErrCodeStopped) }

// IsJournalError reports whether err is a journal write failure.
func IsJournalError(err error) bool { return hasCode(err, ErrCodeJournalFailed) }

// IsReplayDivergence reports whether err is a replay mismatch.
func IsReplayDivergence(err error) bool { return hasCode(err, ErrCodeReplayDiverged) }

// NewCascadeError creates a RuntimeError for an exceeded cascade.
func NewCascadeError(eventType atom.ID, steps, limit int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCascadeExceeded,
		Message:   fmt.Sprintf("cascade exceeded max dispatches (%d > %d)", steps, limit),
		EventType: eventType,
		Details: map[string]string{
			"steps": fmt.Sprintf("%d", steps),
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

func newStoppedError(eventType atom.ID) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStopped,
		Message:   "engine is stopped",
		EventType: eventType,
	}
}

func newJournalError(seq int64, eventType atom.ID, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeJournalFailed,
		Message:   "journal record failed",
		Seq:       seq,
		EventType: eventType,
		Err:       err,
	}
}

// newDivergence reports a replay mismatch for field.
func newDivergence(seq int64, eventType atom.ID, field, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeReplayDiverged,
		Message:   fmt.Sprintf("%s mismatch: recorded %s, replayed %s", field, want, got),
		Seq:       seq,
		EventType: eventType,
		Details: map[string]string{
			"field":    field,
			"recorded": want,
			"replayed": got,
		},
	}
}
