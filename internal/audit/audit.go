// Package audit records one event per scan and serves them back for review.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/valinor-ai/llmguard/internal/scan"
)

// Direction tells which chain produced an event.
type Direction string

const (
	DirectionPrompt Direction = "prompt"
	DirectionOutput Direction = "output"
)

// Sources of scan requests.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
)

// Event is the audit record of a single scan call. Only validity and
// scores are kept; prompt and output text never reach the audit trail.
type Event struct {
	ID         uuid.UUID
	SessionID  string
	Direction  Direction
	Valid      bool
	Results    []scan.Entry
	DurationMS int64
	Source     string
	CreatedAt  time.Time
}

// NewEvent builds an event from a finished report.
func NewEvent(sessionID string, dir Direction, report scan.Report, elapsed time.Duration, source string) Event {
	return Event{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Direction:  dir,
		Valid:      report.Valid(),
		Results:    report.Entries(),
		DurationMS: elapsed.Milliseconds(),
		Source:     source,
	}
}

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }
