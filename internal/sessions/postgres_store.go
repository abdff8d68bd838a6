package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mbd888/guardlens/internal/retry"
	"github.com/mbd888/guardlens/internal/traces"
	"github.com/mbd888/guardlens/migrations"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations that are still pending.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	return migrations.Up(ctx, p.db)
}

func (p *PostgresStore) Save(ctx context.Context, s *Summary) error {
	ctx, span := traces.StartSpan(ctx, "sessions.Save", traces.SessionID(s.ID))
	defer span.End()

	err := retry.Do(ctx, retry.Store, func(ctx context.Context) error {
		_, err := p.db.ExecContext(ctx, `
			INSERT INTO monitoring_sessions (id, started_at, ended_at, duration_seconds, outcome,
			                                 anomalies, peak_threat, final_threat, accuracy_rate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				ended_at         = EXCLUDED.ended_at,
				duration_seconds = EXCLUDED.duration_seconds,
				outcome          = EXCLUDED.outcome,
				anomalies        = EXCLUDED.anomalies,
				peak_threat      = EXCLUDED.peak_threat,
				final_threat     = EXCLUDED.final_threat,
				accuracy_rate    = EXCLUDED.accuracy_rate`,
			s.ID, s.StartedAt, s.EndedAt, s.DurationSeconds, string(s.Outcome),
			s.Anomalies, s.PeakThreat, s.FinalThreat, s.AccuracyRate)
		if err != nil && !transient(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		traces.RecordError(span, err)
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Summary, error) {
	ctx, span := traces.StartSpan(ctx, "sessions.Get", traces.SessionID(id))
	defer span.End()

	row := p.db.QueryRowContext(ctx, `
		SELECT id, started_at, ended_at, duration_seconds, outcome,
		       anomalies, peak_threat, final_threat, accuracy_rate
		FROM monitoring_sessions
		WHERE id = $1`, id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) List(ctx context.Context, limit int, opts ...ListOption) ([]*Summary, error) {
	ctx, span := traces.StartSpan(ctx, "sessions.List")
	defer span.End()

	o := applyListOpts(opts)
	var (
		rows *sql.Rows
		err  error
	)
	if o.cursor != nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, started_at, ended_at, duration_seconds, outcome,
			       anomalies, peak_threat, final_threat, accuracy_rate
			FROM monitoring_sessions
			WHERE (ended_at, id) < ($1, $2)
			ORDER BY ended_at DESC, id DESC
			LIMIT $3`, o.cursor.At, o.cursor.ID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, started_at, ended_at, duration_seconds, outcome,
			       anomalies, peak_threat, final_threat, accuracy_rate
			FROM monitoring_sessions
			ORDER BY ended_at DESC, id DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		traces.RecordError(span, err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (*Summary, error) {
	var (
		s       Summary
		outcome string
	)
	if err := sc.Scan(&s.ID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds, &outcome,
		&s.Anomalies, &s.PeakThreat, &s.FinalThreat, &s.AccuracyRate); err != nil {
		return nil, err
	}
	s.Outcome = Outcome(outcome)
	s.StartedAt = s.StartedAt.UTC()
	s.EndedAt = s.EndedAt.UTC()
	return &s, nil
}

// transient reports whether a write error is worth retrying: connection
// failures and serialization conflicts.
func transient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
