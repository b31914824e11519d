// Package usage records per-user activity and a capped operational log, and
// aggregates them into the statistics served by the API.
//
// Three [Store] backends exist: [MemoryStore] in this package, and the
// sqlite and postgres sub-packages. All are safe for concurrent use. Only
// metadata is stored; transcripts and note text never reach a Store.
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the type of a recorded activity.
type Kind string

const (
	KindSOAPGenerated          Kind = "soap_generated"
	KindTranscriptionCompleted Kind = "transcription_completed"
)

// IsValid reports whether k is a known activity kind.
func (k Kind) IsValid() bool {
	return k == KindSOAPGenerated || k == KindTranscriptionCompleted
}

// Level is the severity of a [LogEntry].
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// IsValid reports whether l is a known level.
func (l Level) IsValid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// Defaults shared by all backends.
const (
	DefaultMaxLogs  = 1000
	DefaultLogLimit = 100
	TopUsersLimit   = 10
)

var (
	// ErrInvalidActivity is returned for an activity with no user or an
	// unknown kind.
	ErrInvalidActivity = errors.New("usage: invalid activity")

	// ErrInvalidLog is returned for a log entry with an empty message or an
	// unknown level.
	ErrInvalidLog = errors.New("usage: invalid log entry")
)

// Activity is one completed unit of work attributed to a user.
type Activity struct {
	User string
	Kind Kind
	At   time.Time

	// Elapsed is the processing time of the operation.
	Elapsed time.Duration
}

// Validate checks a for required fields.
func (a Activity) Validate() error {
	if a.User == "" || !a.Kind.IsValid() {
		return ErrInvalidActivity
	}
	return nil
}

// LogEntry is one line of the operational activity log.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	UserEmail string    `json:"user_email,omitempty"`
	Source    string    `json:"source"`
}

// LogQuery filters [Store.Logs]. Zero Limit means [DefaultLogLimit]; empty
// Level matches all levels.
type LogQuery struct {
	Limit int
	Level Level
}

// UserStats summarises one user's activity.
type UserStats struct {
	User                string
	TotalTranscriptions int
	TotalSOAPNotes      int

	// NotesThisWeek and NotesThisMonth count notes in the rolling 7 and 30
	// days before the query time.
	NotesThisWeek  int
	NotesThisMonth int

	// AverageProcessing is the mean Elapsed of the user's notes.
	AverageProcessing time.Duration

	// LastActivity is zero when the user has no activity.
	LastActivity time.Time
}

// Stats summarises activity across all users.
type Stats struct {
	TotalUsers          int
	ActiveUsersToday    int
	TotalTranscriptions int
	TotalSOAPNotes      int

	// TopUsers holds up to [TopUsersLimit] users ordered by total activity.
	TopUsers []UserStats
}

// Store persists activity and logs.
type Store interface {
	RecordActivity(ctx context.Context, a Activity) error

	// UserStats aggregates user's activity as of now.
	UserStats(ctx context.Context, user string, now time.Time) (UserStats, error)

	// Stats aggregates all activity as of now. A user is active today when
	// they have activity since the start of now's UTC day.
	Stats(ctx context.Context, now time.Time) (Stats, error)

	// AddLog stores e, assigning ID and Timestamp when empty, and trims the
	// log to the store's cap, dropping the oldest entries.
	AddLog(ctx context.Context, e LogEntry) (LogEntry, error)

	// Logs returns entries newest first.
	Logs(ctx context.Context, q LogQuery) ([]LogEntry, error)

	Ping(ctx context.Context) error
	Close() error
}

// PrepareLog validates e and fills ID and Timestamp. Backends call it from
// AddLog.
func PrepareLog(e LogEntry, now time.Time) (LogEntry, error) {
	if e.Message == "" {
		return LogEntry{}, ErrInvalidLog
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	if !e.Level.IsValid() {
		return LogEntry{}, ErrInvalidLog
	}
	if e.Source == "" {
		e.Source = "system"
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC()
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.Timestamp), ulid.DefaultEntropy()).String()
	}
	return e, nil
}

// EffectiveLimit returns the effective entry limit for q.
func (q LogQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLogLimit
	}
	return q.Limit
}

// StartOfDay returns midnight UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
