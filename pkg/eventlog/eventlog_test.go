package eventlog_test

import (
	"context"
	"path/filepath"
	"testing"

	"statusd/pkg/eventlog"
)

// setupLog creates a log with a few recorded events and returns it with its
// database path.
func setupLog(t *testing.T) (*eventlog.Log, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "statusd.db")

	log, err := eventlog.Open(dbPath)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	ctx := context.Background()
	records := []struct {
		typ, reqID, dir, detail string
	}{
		{eventlog.TypeDaemonStart, "", "", "workers=2"},
		{eventlog.TypeRequestReceived, "r1", "/repo", ""},
		{eventlog.TypeRequestEmitted, "r1", "/repo", ""},
		{eventlog.TypeRequestReceived, "r2", "/tmp/none", ""},
		{eventlog.TypeRequestAbandoned, "r2", "/tmp/none", "not a git repository: /tmp/none"},
	}
	for _, rec := range records {
		if err := log.Record(ctx, rec.typ, rec.reqID, rec.dir, rec.detail); err != nil {
			t.Fatalf("record %s: %v", rec.typ, err)
		}
	}
	return log, dbPath
}

func TestNewReader_MissingDB(t *testing.T) {
	_, err := eventlog.NewReader(filepath.Join(t.TempDir(), "absent.db"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestQuery_All(t *testing.T) {
	_, dbPath := setupLog(t)

	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	events, err := reader.Query(context.Background(), eventlog.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Type != eventlog.TypeRequestAbandoned {
		t.Fatalf("expected newest event first, got %s", events[0].Type)
	}
}

func TestQuery_FilterByType(t *testing.T) {
	_, dbPath := setupLog(t)

	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	events, err := reader.Query(context.Background(), eventlog.QueryOpts{Type: eventlog.TypeRequestReceived})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 request_received events, got %d", len(events))
	}
	for _, e := range events {
		if e.Type != eventlog.TypeRequestReceived {
			t.Fatalf("filter leaked event type %s", e.Type)
		}
	}
}

func TestQuery_FilterBySession(t *testing.T) {
	log, dbPath := setupLog(t)

	// A second daemon run in the same database.
	log2, err := eventlog.Open(dbPath)
	if err != nil {
		t.Fatalf("open second log: %v", err)
	}
	defer log2.Close()
	if log2.Session() == log.Session() {
		t.Fatal("two runs must not share a session id")
	}
	if err := log2.Record(context.Background(), eventlog.TypeDaemonStart, "", "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	events, err := reader.Query(context.Background(), eventlog.QueryOpts{Session: log2.Session()})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for second session, got %d", len(events))
	}
}

func TestQuery_Limit(t *testing.T) {
	_, dbPath := setupLog(t)

	reader, err := eventlog.NewReader(dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	events, err := reader.Query(context.Background(), eventlog.QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit of 2 respected, got %d", len(events))
	}
}
