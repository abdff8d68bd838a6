package sessions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/pagination"
)

func summaryAt(id string, ended time.Time) *Summary {
	return &Summary{
		ID:              id,
		StartedAt:       ended.Add(-90 * time.Second),
		EndedAt:         ended,
		DurationSeconds: 90,
		Outcome:         OutcomeComplete,
		Anomalies:       2,
		PeakThreat:      31.5,
		FinalThreat:     18.2,
		AccuracyRate:    98.4,
	}
}

func TestMemoryStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := summaryAt("ses_1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Get(ctx, "ses_1")
	require.NoError(t, err)
	assert.Equal(t, in, got)

	got.Anomalies = 99
	again, _ := s.Get(ctx, "ses_1")
	assert.Equal(t, 2, again.Anomalies, "Get must return a copy")

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, summaryAt(fmt.Sprintf("ses_%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "ses_4", all[0].ID)
	assert.Equal(t, "ses_0", all[4].ID)
}

func TestMemoryStore_CursorPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, summaryAt(fmt.Sprintf("ses_%d", i), base.Add(time.Duration(i)*time.Minute))))
	}
	// Same end time, tie broken by id.
	require.NoError(t, s.Save(ctx, summaryAt("ses_9", base.Add(4*time.Minute))))

	var seen []string
	cursor := ""
	for page := 0; page < 10; page++ {
		items, err := s.List(ctx, 2+1, WithCursor(cursor))
		require.NoError(t, err)
		items, next, more := pagination.ComputePage(items, 2, PageKey)
		for _, it := range items {
			seen = append(seen, it.ID)
		}
		if !more {
			break
		}
		cursor = next
	}
	assert.Equal(t, []string{"ses_9", "ses_4", "ses_3", "ses_2", "ses_1", "ses_0"}, seen)
}

func TestMemoryStore_InvalidCursorIgnored(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, summaryAt("ses_a", time.Now())))
	items, err := s.List(ctx, 10, WithCursor("%%%"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
