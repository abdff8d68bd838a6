//go:build integration

package sessions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/pagination"
	"github.com/mbd888/guardlens/internal/testutil"
	"github.com/mbd888/guardlens/migrations"
)

func TestPostgresStore_RoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	require.NoError(t, s.Migrate(ctx), "Migrate must be idempotent after goose")

	in := summaryAt("ses_pg1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Get(ctx, "ses_pg1")
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.True(t, in.EndedAt.Equal(got.EndedAt))
	assert.Equal(t, in.Outcome, got.Outcome)
	assert.InDelta(t, in.PeakThreat, got.PeakThreat, 1e-9)

	in.Outcome = OutcomeReset
	require.NoError(t, s.Save(ctx, in), "save is an upsert")
	got, err = s.Get(ctx, "ses_pg1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReset, got.Outcome)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_MigrateAppliesEveryVersion(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, migrations.Run(ctx, db, "down-to", "0"))

	s := NewPostgresStore(db)
	require.NoError(t, s.Migrate(ctx))

	var constraints int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM pg_constraint WHERE conname = 'monitoring_sessions_outcome_check'`,
	).Scan(&constraints))
	assert.Equal(t, 1, constraints)

	bad := summaryAt("ses_bad", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	bad.Outcome = Outcome("aborted")
	assert.Error(t, s.Save(ctx, bad), "outcome check rejects unknown outcomes")
}

func TestPostgresStore_Pagination(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresStore(db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, summaryAt(fmt.Sprintf("ses_%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	var seen []string
	cursor := ""
	for {
		items, err := s.List(ctx, 3, WithCursor(cursor))
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
	assert.Equal(t, []string{"ses_4", "ses_3", "ses_2", "ses_1", "ses_0"}, seen)
}
