package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SystemLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEventIDHandlerAddsEventID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(EventIDHandler{Handler: NewJSONHandler(&buf, "info")})

	ctx := WithEventID(context.Background(), "evt-42")
	logger.InfoContext(ctx, "handled")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["event_id"] != "evt-42" {
		t.Fatalf("expected event_id evt-42 got %v", line["event_id"])
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerKeepsWritingAfterSinkError(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(failingHandler{NewJSONHandler(&bytes.Buffer{}, "info")}, NewJSONHandler(&buf, "info"))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"hello"`)) {
		t.Fatalf("second sink did not receive record: %s", buf.String())
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	h := NewMultiHandler(NewJSONHandler(&bytes.Buffer{}, "error"), NewJSONHandler(&bytes.Buffer{}, "warn"))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be enabled")
	}
}

func TestDBHandlerStoresErrorRecords(t *testing.T) {
	db := setupTestDB(t)
	h := NewDBHandler(db, time.Hour)
	logger := slog.New(h).With("handler", "update_noise_statistics")

	ctx := WithEventID(context.Background(), "evt-1")
	logger.InfoContext(ctx, "ignored")
	logger.ErrorContext(ctx, "error updating noise statistics",
		"uid", "u1",
		"doc_id", "r1",
		"kind", "not_found",
		"error", "document not found",
		"attempt", 1,
	)
	h.Stop()

	var logs []models.SystemLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("query logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 stored log got %d", len(logs))
	}
	got := logs[0]
	if got.Handler != "update_noise_statistics" || got.EventID != "evt-1" || got.DocID != "r1" || got.Kind != "not_found" {
		t.Fatalf("unexpected log row: %+v", got)
	}
	if got.UserID == nil || *got.UserID != "u1" {
		t.Fatalf("expected uid u1 got %v", got.UserID)
	}
	if !bytes.Contains(got.Extra, []byte(`"attempt"`)) {
		t.Fatalf("expected unknown attrs in extra, got %s", got.Extra)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := setupTestDB(t)
	h := NewDBHandler(db, time.Hour)
	logger := slog.New(h)
	logger.Error("old")
	h.Stop()

	if err := db.Model(&models.SystemLog{}).Where("message = ?", "old").
		Update("timestamp", time.Now().Add(-60*24*time.Hour)).Error; err != nil {
		t.Fatalf("age log: %v", err)
	}

	deleted := PurgeOlderThan(context.Background(), db, time.Now().Add(-30*24*time.Hour))
	if deleted != 1 {
		t.Fatalf("expected 1 purged row got %d", deleted)
	}
}
