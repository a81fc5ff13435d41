package audit

import (
	"context"
	"testing"
	"time"

	"honeypot-guard/internal/storage"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestLogPersistsEntry(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, zap.NewNop())
	ctx := context.Background()

	logger.Log(ctx, LevelWarn, "g1", "u1", "duplicate_detected", "reason=cross-channel duplicate")

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].Level != LevelWarn || logs[0].Event != "duplicate_detected" {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
}

func TestLogWithoutStore(t *testing.T) {
	logger := NewLogger(nil, zap.NewNop())

	// Must not panic when running storeless, as in tests of other packages.
	logger.Log(context.Background(), LevelInfo, "g1", "u1", "sweep_complete", "deleted=3")
}

func TestRunRetentionPurgesStale(t *testing.T) {
	store := newTestStore(t)
	logger := NewLogger(store, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stale := storage.AuditLog{
		GuildID:   "g1",
		UserID:    "u1",
		Level:     LevelWarn,
		Event:     "honeypot_triggered",
		CreatedAt: time.Now().AddDate(0, 0, -30),
	}
	if err := store.AddAuditLog(ctx, stale); err != nil {
		t.Fatalf("add audit log: %v", err)
	}

	done := make(chan struct{})
	go func() {
		logger.RunRetention(ctx, 5*time.Millisecond, 14)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		logs, err := store.ListAuditLogs(ctx, "g1", time.Unix(0, 0))
		if err != nil {
			t.Fatalf("list audit logs: %v", err)
		}
		if len(logs) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("stale entry not purged, %d logs remain", len(logs))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retention loop did not stop on cancel")
	}
}

func TestRunRetentionDisabled(t *testing.T) {
	logger := NewLogger(nil, zap.NewNop())

	// Returns immediately when there is no store or retention is off.
	logger.RunRetention(context.Background(), time.Millisecond, 14)
	logger.RunRetention(context.Background(), time.Millisecond, 0)
}
