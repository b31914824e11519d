// Package sqlite implements usage.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). Timestamps are stored as Unix nanoseconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/elektron/internal/usage"
)

var _ usage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS activities (
    user_email TEXT    NOT NULL,
    kind       TEXT    NOT NULL,
    at_ns      INTEGER NOT NULL,
    elapsed_ns INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_activities_user ON activities (user_email);
CREATE INDEX IF NOT EXISTS idx_activities_at   ON activities (at_ns);

CREATE TABLE IF NOT EXISTS activity_logs (
    id         TEXT    PRIMARY KEY,
    ts_ns      INTEGER NOT NULL,
    level      TEXT    NOT NULL,
    message    TEXT    NOT NULL,
    user_email TEXT    NOT NULL DEFAULT '',
    source     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_logs_ts ON activity_logs (ts_ns DESC, id DESC);
`

// Store is a SQLite-backed usage.Store. All access goes through one
// connection, so writers never contend for the file lock.
type Store struct {
	db      *sql.DB
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

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite usage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, maxLogs: usage.DefaultMaxLogs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite usage: migrate: %w", err)
		}
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (user_email, kind, at_ns, elapsed_ns) VALUES (?, ?, ?, ?)`,
		a.User, string(a.Kind), a.At.UnixNano(), a.Elapsed.Nanoseconds())
	if err != nil {
		return fmt.Errorf("sqlite usage: record activity: %w", err)
	}
	return nil
}

// perUserColumns aggregates one user's rows. Parameters: week start, month
// start (both ns).
const perUserColumns = `
    COALESCE(SUM(kind = 'soap_generated'), 0),
    COALESCE(SUM(kind = 'transcription_completed'), 0),
    COALESCE(SUM(kind = 'soap_generated' AND at_ns >= ?), 0),
    COALESCE(SUM(kind = 'soap_generated' AND at_ns >= ?), 0),
    COALESCE(SUM(CASE WHEN kind = 'soap_generated' THEN elapsed_ns END), 0),
    MAX(at_ns)`

type scanner interface {
	Scan(dest ...any) error
}

func scanUserStats(row scanner, st *usage.UserStats) error {
	var elapsed int64
	var last sql.NullInt64
	if err := row.Scan(
		&st.TotalSOAPNotes, &st.TotalTranscriptions,
		&st.NotesThisWeek, &st.NotesThisMonth,
		&elapsed, &last,
	); err != nil {
		return err
	}
	if st.TotalSOAPNotes > 0 {
		st.AverageProcessing = time.Duration(elapsed / int64(st.TotalSOAPNotes))
	}
	if last.Valid {
		st.LastActivity = time.Unix(0, last.Int64).UTC()
	}
	return nil
}

func windows(now time.Time) (week, month int64) {
	return now.AddDate(0, 0, -7).UnixNano(), now.AddDate(0, 0, -30).UnixNano()
}

// UserStats implements usage.Store.
func (s *Store) UserStats(ctx context.Context, user string, now time.Time) (usage.UserStats, error) {
	week, month := windows(now)
	st := usage.UserStats{User: user}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+perUserColumns+` FROM activities WHERE user_email = ?`,
		week, month, user)
	if err := scanUserStats(row, &st); err != nil {
		return usage.UserStats{}, fmt.Errorf("sqlite usage: user stats: %w", err)
	}
	return st, nil
}

// Stats implements usage.Store.
func (s *Store) Stats(ctx context.Context, now time.Time) (usage.Stats, error) {
	var st usage.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT user_email),
		       COUNT(DISTINCT CASE WHEN at_ns >= ? THEN user_email END),
		       COALESCE(SUM(kind = 'transcription_completed'), 0),
		       COALESCE(SUM(kind = 'soap_generated'), 0)
		FROM activities`,
		usage.StartOfDay(now).UnixNano(),
	).Scan(&st.TotalUsers, &st.ActiveUsersToday, &st.TotalTranscriptions, &st.TotalSOAPNotes)
	if err != nil {
		return usage.Stats{}, fmt.Errorf("sqlite usage: stats: %w", err)
	}

	week, month := windows(now)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_email, `+perUserColumns+`
		FROM activities
		GROUP BY user_email
		ORDER BY COUNT(*) DESC, user_email ASC
		LIMIT ?`,
		week, month, usage.TopUsersLimit)
	if err != nil {
		return usage.Stats{}, fmt.Errorf("sqlite usage: top users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u usage.UserStats
		var user string
		if err := scanUserStats(prefixScanner{rows, &user}, &u); err != nil {
			return usage.Stats{}, fmt.Errorf("sqlite usage: scan top user: %w", err)
		}
		u.User = user
		st.TopUsers = append(st.TopUsers, u)
	}
	if err := rows.Err(); err != nil {
		return usage.Stats{}, fmt.Errorf("sqlite usage: top users: %w", err)
	}
	return st, nil
}

// prefixScanner scans one leading column into first before the rest.
type prefixScanner struct {
	rows  *sql.Rows
	first any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.first}, dest...)...)
}

// AddLog implements usage.Store.
func (s *Store) AddLog(ctx context.Context, e usage.LogEntry) (usage.LogEntry, error) {
	e, err := usage.PrepareLog(e, s.now())
	if err != nil {
		return usage.LogEntry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.LogEntry{}, fmt.Errorf("sqlite usage: add log: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_logs (id, ts_ns, level, message, user_email, source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UnixNano(), string(e.Level), e.Message, e.UserEmail, e.Source,
	); err != nil {
		return usage.LogEntry{}, fmt.Errorf("sqlite usage: add log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM activity_logs WHERE id NOT IN (
		    SELECT id FROM activity_logs ORDER BY ts_ns DESC, id DESC LIMIT ?
		)`, s.maxLogs,
	); err != nil {
		return usage.LogEntry{}, fmt.Errorf("sqlite usage: trim logs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return usage.LogEntry{}, fmt.Errorf("sqlite usage: add log: %w", err)
	}
	return e, nil
}

// Logs implements usage.Store.
func (s *Store) Logs(ctx context.Context, q usage.LogQuery) ([]usage.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts_ns, level, message, user_email, source
		FROM activity_logs
		WHERE ? = '' OR level = ?
		ORDER BY ts_ns DESC, id DESC
		LIMIT ?`,
		string(q.Level), string(q.Level), q.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("sqlite usage: logs: %w", err)
	}
	defer rows.Close()

	var out []usage.LogEntry
	for rows.Next() {
		var e usage.LogEntry
		var ts int64
		var level string
		if err := rows.Scan(&e.ID, &ts, &level, &e.Message, &e.UserEmail, &e.Source); err != nil {
			return nil, fmt.Errorf("sqlite usage: scan log: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Level = usage.Level(level)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite usage: logs: %w", err)
	}
	return out, nil
}

// Ping implements usage.Store.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close implements usage.Store.
func (s *Store) Close() error { return s.db.Close() }
