package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestAuditLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := AuditLog{
		GuildID:   "g1",
		UserID:    "u1",
		Level:     "WARN",
		Event:     "honeypot_triggered",
		Details:   "reason=posted in honeypot channel intro",
		CreatedAt: time.Now(),
	}
	if err := store.AddAuditLog(ctx, entry); err != nil {
		t.Fatalf("add audit log: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].Event != "honeypot_triggered" || logs[0].UserID != "u1" {
		t.Fatalf("unexpected log: %+v", logs[0])
	}
}

func TestCleanupAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := AuditLog{
		GuildID:   "g1",
		UserID:    "u1",
		Level:     "WARN",
		Event:     "honeypot_triggered",
		CreatedAt: time.Now().AddDate(0, 0, -30),
	}
	fresh := AuditLog{
		GuildID:   "g1",
		UserID:    "u2",
		Level:     "INFO",
		Event:     "sweep_complete",
		CreatedAt: time.Now(),
	}
	for _, entry := range []AuditLog{stale, fresh} {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	if err := store.CleanupAuditLogs(ctx, 14); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log after cleanup, got %d", len(logs))
	}
	if logs[0].UserID != "u2" {
		t.Fatalf("expected fresh entry to survive, got %+v", logs[0])
	}
}

func TestIncrementDetection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.IncrementDetection(ctx, "g1", "u1", "duplicate_detected", "chanA")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	count, err = store.IncrementDetection(ctx, "g1", "u1", "duplicate_detected", "chanB")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	det, err := store.GetDetection(ctx, "g1", "u1", "duplicate_detected")
	if err != nil {
		t.Fatalf("get detection: %v", err)
	}
	if det.CountTotal != 2 || det.RefChannel != "chanB" {
		t.Fatalf("unexpected detection: %+v", det)
	}
}

func TestDetectionReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, event := range []string{"honeypot_triggered", "duplicate_detected", "duplicate_detected"} {
		entry := AuditLog{GuildID: "g1", UserID: "u1", Level: "WARN", Event: event, CreatedAt: now}
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	report, err := store.DetectionReport(ctx, "g1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected total 3, got %d", report.Total)
	}
	if report.ByResult["duplicate_detected"] != 2 {
		t.Fatalf("expected 2 duplicate events, got %d", report.ByResult["duplicate_detected"])
	}
}
