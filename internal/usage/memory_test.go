package usage_test

import (
	"testing"
	"time"

	"github.com/MrWong99/elektron/internal/usage"
	"github.com/MrWong99/elektron/internal/usage/usagetest"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	usagetest.Run(t, func(t *testing.T, maxLogs int) usage.Store {
		return usage.NewMemoryStore(usage.WithMaxLogs(maxLogs))
	})
}

func TestPrepareLog(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	e, err := usage.PrepareLog(usage.LogEntry{Message: "ok"}, now)
	if err != nil {
		t.Fatalf("PrepareLog: %v", err)
	}
	if e.Timestamp.Location() != time.UTC || !e.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %s, want %s in UTC", e.Timestamp, now)
	}
	if len(e.ID) != 26 {
		t.Errorf("ID = %q, want a 26-char ULID", e.ID)
	}
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	got := usage.StartOfDay(time.Date(2026, 5, 6, 23, 59, 0, 0, time.UTC))
	if want := time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("StartOfDay = %s, want %s", got, want)
	}
}

func TestLogQuery_EffectiveLimit(t *testing.T) {
	t.Parallel()

	if got := (usage.LogQuery{}).EffectiveLimit(); got != usage.DefaultLogLimit {
		t.Errorf("zero limit = %d, want %d", got, usage.DefaultLogLimit)
	}
	if got := (usage.LogQuery{Limit: 7}).EffectiveLimit(); got != 7 {
		t.Errorf("limit 7 = %d", got)
	}
}
