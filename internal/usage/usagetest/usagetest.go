// Package usagetest provides a conformance suite that every usage.Store
// backend runs from its own tests.
package usagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/elektron/internal/usage"
)

// Factory returns a fresh, empty store retaining at most maxLogs log
// entries. It registers its own cleanup.
type Factory func(t *testing.T, maxLogs int) usage.Store

// Now is the fixed query time used by the suite.
var Now = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RecordActivityValidates", func(t *testing.T) { testRecordActivityValidates(t, newStore) })
	t.Run("UserStats", func(t *testing.T) { testUserStats(t, newStore) })
	t.Run("UserStatsUnknownUser", func(t *testing.T) { testUserStatsUnknown(t, newStore) })
	t.Run("Stats", func(t *testing.T) { testStats(t, newStore) })
	t.Run("TopUsersLimit", func(t *testing.T) { testTopUsersLimit(t, newStore) })
	t.Run("AddLogDefaults", func(t *testing.T) { testAddLogDefaults(t, newStore) })
	t.Run("AddLogValidates", func(t *testing.T) { testAddLogValidates(t, newStore) })
	t.Run("LogsNewestFirst", func(t *testing.T) { testLogsNewestFirst(t, newStore) })
	t.Run("LogsCap", func(t *testing.T) { testLogsCap(t, newStore) })
	t.Run("Ping", func(t *testing.T) {
		if err := newStore(t, 0).Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func record(t *testing.T, s usage.Store, user string, kind usage.Kind, ago, elapsed time.Duration) {
	t.Helper()
	err := s.RecordActivity(context.Background(), usage.Activity{
		User:    user,
		Kind:    kind,
		At:      Now.Add(-ago),
		Elapsed: elapsed,
	})
	if err != nil {
		t.Fatalf("RecordActivity(%s, %s): %v", user, kind, err)
	}
}

const day = 24 * time.Hour

// seed records three notes and one transcription for alice and one
// transcription for bob.
func seed(t *testing.T, s usage.Store) {
	t.Helper()
	record(t, s, "alice@clinic.test", usage.KindSOAPGenerated, time.Hour, 2*time.Second)
	record(t, s, "alice@clinic.test", usage.KindSOAPGenerated, 10*day, 4*time.Second)
	record(t, s, "alice@clinic.test", usage.KindSOAPGenerated, 40*day, 6*time.Second)
	record(t, s, "alice@clinic.test", usage.KindTranscriptionCompleted, 2*time.Hour, 30*time.Second)
	record(t, s, "bob@clinic.test", usage.KindTranscriptionCompleted, 2*day, 10*time.Second)
}

func testRecordActivityValidates(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	ctx := context.Background()
	for _, a := range []usage.Activity{
		{Kind: usage.KindSOAPGenerated, At: Now},
		{User: "alice@clinic.test", Kind: "pdf_exported", At: Now},
	} {
		if err := s.RecordActivity(ctx, a); !errors.Is(err, usage.ErrInvalidActivity) {
			t.Errorf("RecordActivity(%+v) err = %v, want ErrInvalidActivity", a, err)
		}
	}
}

func testUserStats(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	seed(t, s)

	got, err := s.UserStats(context.Background(), "alice@clinic.test", Now)
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if got.User != "alice@clinic.test" {
		t.Errorf("User = %q", got.User)
	}
	if got.TotalSOAPNotes != 3 || got.TotalTranscriptions != 1 {
		t.Errorf("totals = %d notes, %d transcriptions, want 3, 1", got.TotalSOAPNotes, got.TotalTranscriptions)
	}
	if got.NotesThisWeek != 1 || got.NotesThisMonth != 2 {
		t.Errorf("week/month = %d/%d, want 1/2", got.NotesThisWeek, got.NotesThisMonth)
	}
	if got.AverageProcessing != 4*time.Second {
		t.Errorf("AverageProcessing = %s, want 4s", got.AverageProcessing)
	}
	if !got.LastActivity.Equal(Now.Add(-time.Hour)) {
		t.Errorf("LastActivity = %s, want %s", got.LastActivity, Now.Add(-time.Hour))
	}
}

func testUserStatsUnknown(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	seed(t, s)

	got, err := s.UserStats(context.Background(), "nobody@clinic.test", Now)
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if got.TotalSOAPNotes != 0 || got.TotalTranscriptions != 0 || !got.LastActivity.IsZero() {
		t.Errorf("unknown user stats = %+v, want zero counts", got)
	}
	if got.AverageProcessing != 0 {
		t.Errorf("AverageProcessing = %s, want 0", got.AverageProcessing)
	}
}

func testStats(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	seed(t, s)

	st, err := s.Stats(context.Background(), Now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", st.TotalUsers)
	}
	if st.ActiveUsersToday != 1 {
		t.Errorf("ActiveUsersToday = %d, want 1", st.ActiveUsersToday)
	}
	if st.TotalSOAPNotes != 3 || st.TotalTranscriptions != 2 {
		t.Errorf("totals = %d notes, %d transcriptions, want 3, 2", st.TotalSOAPNotes, st.TotalTranscriptions)
	}
	if len(st.TopUsers) != 2 {
		t.Fatalf("TopUsers len = %d, want 2", len(st.TopUsers))
	}
	if st.TopUsers[0].User != "alice@clinic.test" || st.TopUsers[1].User != "bob@clinic.test" {
		t.Errorf("TopUsers order = %s, %s", st.TopUsers[0].User, st.TopUsers[1].User)
	}
	if st.TopUsers[0].TotalSOAPNotes != 3 || st.TopUsers[1].TotalTranscriptions != 1 {
		t.Errorf("TopUsers counts = %+v", st.TopUsers)
	}
}

func testTopUsersLimit(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	for i := range usage.TopUsersLimit + 3 {
		user := fmt.Sprintf("doctor%02d@clinic.test", i)
		for range i + 1 {
			record(t, s, user, usage.KindSOAPGenerated, time.Minute, time.Second)
		}
	}

	st, err := s.Stats(context.Background(), Now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalUsers != usage.TopUsersLimit+3 {
		t.Errorf("TotalUsers = %d", st.TotalUsers)
	}
	if len(st.TopUsers) != usage.TopUsersLimit {
		t.Fatalf("TopUsers len = %d, want %d", len(st.TopUsers), usage.TopUsersLimit)
	}
	if want := fmt.Sprintf("doctor%02d@clinic.test", usage.TopUsersLimit+2); st.TopUsers[0].User != want {
		t.Errorf("TopUsers[0] = %s, want %s", st.TopUsers[0].User, want)
	}
}

func testAddLogDefaults(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	e, err := s.AddLog(context.Background(), usage.LogEntry{Message: "whisper model loaded"})
	if err != nil {
		t.Fatalf("AddLog: %v", err)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("ID/Timestamp not assigned: %+v", e)
	}
	if e.Level != usage.LevelInfo || e.Source != "system" {
		t.Errorf("defaults = %q/%q, want info/system", e.Level, e.Source)
	}

	logs, err := s.Logs(context.Background(), usage.LogQuery{})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != e.ID || logs[0].Message != e.Message {
		t.Errorf("Logs = %+v, want [%+v]", logs, e)
	}
}

func testAddLogValidates(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	for _, e := range []usage.LogEntry{
		{Level: usage.LevelInfo},
		{Message: "disk full", Level: "critical"},
	} {
		if _, err := s.AddLog(context.Background(), e); !errors.Is(err, usage.ErrInvalidLog) {
			t.Errorf("AddLog(%+v) err = %v, want ErrInvalidLog", e, err)
		}
	}
}

func addLogs(t *testing.T, s usage.Store, n int) {
	t.Helper()
	levels := []usage.Level{usage.LevelInfo, usage.LevelWarning, usage.LevelError}
	for i := range n {
		_, err := s.AddLog(context.Background(), usage.LogEntry{
			Timestamp: Now.Add(time.Duration(i) * time.Second),
			Level:     levels[i%len(levels)],
			Message:   fmt.Sprintf("entry %d", i),
			UserEmail: "alice@clinic.test",
			Source:    "soap_generation",
		})
		if err != nil {
			t.Fatalf("AddLog %d: %v", i, err)
		}
	}
}

func testLogsNewestFirst(t *testing.T, newStore Factory) {
	s := newStore(t, 0)
	addLogs(t, s, 6)
	ctx := context.Background()

	all, err := s.Logs(ctx, usage.LogQuery{})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("len = %d, want 6", len(all))
	}
	for i, e := range all {
		if want := fmt.Sprintf("entry %d", 5-i); e.Message != want {
			t.Errorf("all[%d] = %q, want %q", i, e.Message, want)
		}
	}

	limited, err := s.Logs(ctx, usage.LogQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Logs(limit): %v", err)
	}
	if len(limited) != 2 || limited[0].Message != "entry 5" {
		t.Errorf("limited = %+v", limited)
	}

	warnings, err := s.Logs(ctx, usage.LogQuery{Level: usage.LevelWarning})
	if err != nil {
		t.Fatalf("Logs(level): %v", err)
	}
	if len(warnings) != 2 || warnings[0].Message != "entry 4" || warnings[1].Message != "entry 1" {
		t.Errorf("warnings = %+v", warnings)
	}
	if warnings[0].UserEmail != "alice@clinic.test" || warnings[0].Source != "soap_generation" {
		t.Errorf("fields not round-tripped: %+v", warnings[0])
	}
}

func testLogsCap(t *testing.T, newStore Factory) {
	s := newStore(t, 3)
	addLogs(t, s, 5)

	logs, err := s.Logs(context.Background(), usage.LogQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len = %d, want 3", len(logs))
	}
	if logs[0].Message != "entry 4" || logs[2].Message != "entry 2" {
		t.Errorf("retained = %q..%q, want entry 4..entry 2", logs[0].Message, logs[2].Message)
	}
}
