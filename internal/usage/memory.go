package usage

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process [Store]. Its contents are lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	activities []Activity
	logs       []LogEntry // newest first
	maxLogs    int
	now        func() time.Time
}

// MemoryOption configures a [MemoryStore].
type MemoryOption func(*MemoryStore)

// WithMaxLogs caps the retained log entries. Default [DefaultMaxLogs].
func WithMaxLogs(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxLogs = n
		}
	}
}

// WithClock overrides the time source used for log timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{maxLogs: DefaultMaxLogs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordActivity implements [Store].
func (s *MemoryStore) RecordActivity(_ context.Context, a Activity) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.At.IsZero() {
		a.At = s.now()
	}
	s.mu.Lock()
	s.activities = append(s.activities, a)
	s.mu.Unlock()
	return nil
}

// UserStats implements [Store].
func (s *MemoryStore) UserStats(_ context.Context, user string, now time.Time) (UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc := newAccumulator(user, now)
	for _, a := range s.activities {
		if a.User == user {
			acc.add(a)
		}
	}
	return acc.stats(), nil
}

// Stats implements [Store].
func (s *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := StartOfDay(now)
	perUser := make(map[string]*accumulator)
	active := make(map[string]struct{})
	var st Stats
	for _, a := range s.activities {
		acc, ok := perUser[a.User]
		if !ok {
			acc = newAccumulator(a.User, now)
			perUser[a.User] = acc
		}
		acc.add(a)
		if !a.At.Before(today) {
			active[a.User] = struct{}{}
		}
		switch a.Kind {
		case KindSOAPGenerated:
			st.TotalSOAPNotes++
		case KindTranscriptionCompleted:
			st.TotalTranscriptions++
		}
	}
	st.TotalUsers = len(perUser)
	st.ActiveUsersToday = len(active)

	users := make([]UserStats, 0, len(perUser))
	for _, acc := range perUser {
		users = append(users, acc.stats())
	}
	st.TopUsers = TopUsers(users)
	return st, nil
}

// AddLog implements [Store].
func (s *MemoryStore) AddLog(_ context.Context, e LogEntry) (LogEntry, error) {
	e, err := PrepareLog(e, s.now())
	if err != nil {
		return LogEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = slices.Insert(s.logs, 0, e)
	if len(s.logs) > s.maxLogs {
		clear(s.logs[s.maxLogs:])
		s.logs = s.logs[:s.maxLogs]
	}
	return e, nil
}

// Logs implements [Store].
func (s *MemoryStore) Logs(_ context.Context, q LogQuery) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := q.EffectiveLimit()
	out := make([]LogEntry, 0, min(limit, len(s.logs)))
	for _, e := range s.logs {
		if len(out) == limit {
			break
		}
		if q.Level != "" && e.Level != q.Level {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Ping implements [Store]. It always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements [Store].
func (s *MemoryStore) Close() error { return nil }

// ── Aggregation ──────────────────────────────────────────────────────────────

type accumulator struct {
	UserStats
	week, month time.Time
	elapsed     time.Duration
}

func newAccumulator(user string, now time.Time) *accumulator {
	return &accumulator{
		UserStats: UserStats{User: user},
		week:      now.AddDate(0, 0, -7),
		month:     now.AddDate(0, 0, -30),
	}
}

func (acc *accumulator) add(a Activity) {
	switch a.Kind {
	case KindSOAPGenerated:
		acc.TotalSOAPNotes++
		acc.elapsed += a.Elapsed
		if !a.At.Before(acc.week) {
			acc.NotesThisWeek++
		}
		if !a.At.Before(acc.month) {
			acc.NotesThisMonth++
		}
	case KindTranscriptionCompleted:
		acc.TotalTranscriptions++
	}
	if a.At.After(acc.LastActivity) {
		acc.LastActivity = a.At
	}
}

func (acc *accumulator) stats() UserStats {
	st := acc.UserStats
	if st.TotalSOAPNotes > 0 {
		st.AverageProcessing = acc.elapsed / time.Duration(st.TotalSOAPNotes)
	}
	return st
}

// TopUsers sorts users by total activity, ties broken by name, and keeps
// the first [TopUsersLimit]. It reorders users in place.
func TopUsers(users []UserStats) []UserStats {
	slices.SortFunc(users, func(a, b UserStats) int {
		ta := a.TotalSOAPNotes + a.TotalTranscriptions
		tb := b.TotalSOAPNotes + b.TotalTranscriptions
		if c := cmp.Compare(tb, ta); c != 0 {
			return c
		}
		return cmp.Compare(a.User, b.User)
	})
	if len(users) > TopUsersLimit {
		users = users[:TopUsersLimit]
	}
	return users
}
