// Package sessions persists summaries of finished monitoring sessions.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/guardlens/internal/pagination"
)

var ErrNotFound = errors.New("sessions: not found")

// Outcome describes how a monitoring session ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeReset     Outcome = "reset"
	OutcomeRestarted Outcome = "restarted"
)

// Summary is the record kept for one monitoring session, from Start to the
// Stop, Reset or Start that closed it.
type Summary struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	DurationSeconds int       `json:"durationSeconds"`
	Outcome         Outcome   `json:"outcome"`
	Anomalies       int       `json:"anomalies"`
	PeakThreat      float64   `json:"peakThreat"`
	FinalThreat     float64   `json:"finalThreat"`
	AccuracyRate    float64   `json:"accuracyRate"`
}

// ListOption configures optional parameters for list queries.
type ListOption func(*listOpts)

type listOpts struct {
	cursor *pagination.Cursor
}

func applyListOpts(opts []ListOption) listOpts {
	var o listOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithCursor filters results to items after the given cursor position.
func WithCursor(cursor string) ListOption {
	return func(o *listOpts) {
		c, err := pagination.Decode(cursor)
		if err == nil {
			o.cursor = c
		}
	}
}

// Store persists session summaries. List returns newest first.
type Store interface {
	Save(ctx context.Context, s *Summary) error
	Get(ctx context.Context, id string) (*Summary, error)
	List(ctx context.Context, limit int, opts ...ListOption) ([]*Summary, error)
}

// PageKey is the pagination key of a summary.
func PageKey(s *Summary) (time.Time, string) {
	return s.EndedAt, s.ID
}

// before reports whether s sorts after the cursor in newest-first order.
func before(s *Summary, c *pagination.Cursor) bool {
	if s.EndedAt.Equal(c.At) {
		return s.ID < c.ID
	}
	return s.EndedAt.Before(c.At)
}
