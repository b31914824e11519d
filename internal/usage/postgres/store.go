package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/elektron/internal/usage"
)

var _ usage.Store = (*Store)(nil)

// Store is a PostgreSQL-backed usage.Store. All methods are safe for
// concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	maxLogs int
	now     func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithMaxLogs caps the retained log entries. Default usage.DefaultMaxLogs.
func WithMaxLogs(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLogs = n
		}
	}
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres usage: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres usage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres usage: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres usage: migrate: %w", err)
	}

	s := &Store{pool: pool, maxLogs: usage.DefaultMaxLogs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordActivity implements usage.Store.
func (s *Store) RecordActivity(ctx context.Context, a usage.Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	const q = `
		INSERT INTO usage_activities (user_email, kind, at, elapsed_ns)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, q, a.User, string(a.Kind), a.At, a.Elapsed.Nanoseconds()); err != nil {
		return fmt.Errorf("postgres usage: record activity: %w", err)
	}
	return nil
}

// perUserColumns aggregates one user's rows. $1 is the week start, $2 the
// month start.
const perUserColumns = `
    COUNT(*) FILTER (WHERE kind = 'soap_generated'),
    COUNT(*) FILTER (WHERE kind = 'transcription_completed'),
    COUNT(*) FILTER (WHERE kind = 'soap_generated' AND at >= $1),
    COUNT(*) FILTER (WHERE kind = 'soap_generated' AND at >= $2),
    COALESCE(SUM(elapsed_ns) FILTER (WHERE kind = 'soap_generated'), 0)::bigint,
    MAX(at)`

func scanUserStats(row pgx.Row, user *string, st *usage.UserStats) error {
	var notes, transcriptions, week, month, elapsed int64
	var last *time.Time
	dest := []any{&notes, &transcriptions, &week, &month, &elapsed, &last}
	if user != nil {
		dest = append([]any{user}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}
	st.TotalSOAPNotes = int(notes)
	st.TotalTranscriptions = int(transcriptions)
	st.NotesThisWeek = int(week)
	st.NotesThisMonth = int(month)
	if notes > 0 {
		st.AverageProcessing = time.Duration(elapsed / notes)
	}
	if last != nil {
		st.LastActivity = last.UTC()
	}
	return nil
}

// UserStats implements usage.Store.
func (s *Store) UserStats(ctx context.Context, user string, now time.Time) (usage.UserStats, error) {
	q := `SELECT ` + perUserColumns + ` FROM usage_activities WHERE user_email = $3`
	st := usage.UserStats{User: user}
	row := s.pool.QueryRow(ctx, q, now.AddDate(0, 0, -7), now.AddDate(0, 0, -30), user)
	if err := scanUserStats(row, nil, &st); err != nil {
		return usage.UserStats{}, fmt.Errorf("postgres usage: user stats: %w", err)
	}
	return st, nil
}

// Stats implements usage.Store.
func (s *Store) Stats(ctx context.Context, now time.Time) (usage.Stats, error) {
	const totals = `
		SELECT COUNT(DISTINCT user_email),
		       COUNT(DISTINCT user_email) FILTER (WHERE at >= $1),
		       COUNT(*) FILTER (WHERE kind = 'transcription_completed'),
		       COUNT(*) FILTER (WHERE kind = 'soap_generated')
		FROM usage_activities`

	var users, active, transcriptions, notes int64
	if err := s.pool.QueryRow(ctx, totals, usage.StartOfDay(now)).
		Scan(&users, &active, &transcriptions, &notes); err != nil {
		return usage.Stats{}, fmt.Errorf("postgres usage: stats: %w", err)
	}
	st := usage.Stats{
		TotalUsers:          int(users),
		ActiveUsersToday:    int(active),
		TotalTranscriptions: int(transcriptions),
		TotalSOAPNotes:      int(notes),
	}

	top := `
		SELECT user_email, ` + perUserColumns + `
		FROM usage_activities
		GROUP BY user_email
		ORDER BY COUNT(*) DESC, user_email ASC
		LIMIT $3`
	rows, err := s.pool.Query(ctx, top, now.AddDate(0, 0, -7), now.AddDate(0, 0, -30), usage.TopUsersLimit)
	if err != nil {
		return usage.Stats{}, fmt.Errorf("postgres usage: top users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u usage.UserStats
		if err := scanUserStats(rows, &u.User, &u); err != nil {
			return usage.Stats{}, fmt.Errorf("postgres usage: scan top user: %w", err)
		}
		st.TopUsers = append(st.TopUsers, u)
	}
	if err := rows.Err(); err != nil {
		return usage.Stats{}, fmt.Errorf("postgres usage: top users: %w", err)
	}
	return st, nil
}

// AddLog implements usage.Store. Insert and trim run in one transaction.
func (s *Store) AddLog(ctx context.Context, e usage.LogEntry) (usage.LogEntry, error) {
	e, err := usage.PrepareLog(e, s.now())
	if err != nil {
		return usage.LogEntry{}, err
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO usage_logs (id, ts, level, message, user_email, source)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, insert, e.ID, e.Timestamp, string(e.Level), e.Message, e.UserEmail, e.Source); err != nil {
			return err
		}
		const trim = `
			DELETE FROM usage_logs WHERE id NOT IN (
			    SELECT id FROM usage_logs ORDER BY ts DESC, id DESC LIMIT $1
			)`
		_, err := tx.Exec(ctx, trim, s.maxLogs)
		return err
	})
	if err != nil {
		return usage.LogEntry{}, fmt.Errorf("postgres usage: add log: %w", err)
	}
	return e, nil
}

// Logs implements usage.Store.
func (s *Store) Logs(ctx context.Context, q usage.LogQuery) ([]usage.LogEntry, error) {
	const sel = `
		SELECT id, ts, level, message, user_email, source
		FROM usage_logs
		WHERE $1 = '' OR level = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, sel, string(q.Level), q.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("postgres usage: logs: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (usage.LogEntry, error) {
		var e usage.LogEntry
		var level string
		err := row.Scan(&e.ID, &e.Timestamp, &level, &e.Message, &e.UserEmail, &e.Source)
		e.Timestamp = e.Timestamp.UTC()
		e.Level = usage.Level(level)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres usage: logs: %w", err)
	}
	return out, nil
}

// Ping implements usage.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres usage: ping: %w", err)
	}
	return nil
}

// Close implements usage.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
