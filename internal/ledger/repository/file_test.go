package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interviewdesk/pkg/logger"
	"interviewdesk/pkg/model"
)

func TestFileDocumentStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileDocumentStore(filepath.Join(t.TempDir(), "bookings.json"), logger.Discard())

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.len() != 0 {
		t.Errorf("Load() len = %d, want 0", doc.len())
	}
}

func TestFileDocumentStore_Rehydrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.json")
	ctx := context.Background()
	key := model.SlotKey{Date: "2025-03-14", Time: "9:00 AM ET"}

	repo := newTestLedger(t, NewFileDocumentStore(path, logger.Discard()))
	if ok, err := repo.TryInsert(ctx, key, record("a@x.com", "123")); err != nil || !ok {
		t.Fatalf("TryInsert() = %v, %v", ok, err)
	}

	reopened := newTestLedger(t, NewFileDocumentStore(path, logger.Discard()))
	rec, found := reopened.Get(key)
	if !found {
		t.Fatal("booking missing after reopen")
	}
	if rec.Requester != "a@x.com" || rec.Meeting.ExternalID != "123" {
		t.Errorf("rehydrated record = %+v", rec)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileDocumentStore_LegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.json")
	legacy := `{
  "2025-03-14": {
    "9:00 AM ET": {
      "email": "candidate@example.com",
      "zoom_link": {
        "url": "https://zoom.us/j/85012345678",
        "meeting_id": 85012345678,
        "password": "abc123"
      }
    }
  },
  "2025-03-15": {}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := NewFileDocumentStore(path, logger.Discard()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	rec, ok := doc.get(model.SlotKey{Date: "2025-03-14", Time: "9:00 AM ET"})
	if !ok {
		t.Fatal("legacy booking not found")
	}
	if rec.Meeting.ExternalID != "85012345678" || rec.Meeting.Secret != "abc123" {
		t.Errorf("legacy record = %+v", rec)
	}
	if _, ok := doc["2025-03-15"]; ok {
		t.Error("empty date not pruned on load")
	}
}

func TestFileDocumentStore_CorruptFileBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := NewFileDocumentStore(path, logger.Discard()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.len() != 0 {
		t.Errorf("Load() len = %d, want 0", doc.len())
	}

	backup, err := os.ReadFile(path + corruptSuffix)
	if err != nil {
		t.Fatalf("corrupt backup missing: %v", err)
	}
	if string(backup) != "{not json" {
		t.Errorf("backup content = %q", backup)
	}
}

func TestFileDocumentStore_SaveFailureLeavesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookings.json")
	store := NewFileDocumentStore(path, logger.Discard())
	ctx := context.Background()

	doc := NewDocument()
	doc.put(model.SlotKey{Date: "2025-03-14", Time: "9:00 AM ET"}, record("a@x.com", "1"))
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, _ := os.ReadFile(path)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	doc.put(model.SlotKey{Date: "2025-03-14", Time: "10:00 AM ET"}, record("b@x.com", "2"))
	if err := store.Save(cancelled, doc); err == nil {
		t.Fatal("Save() with cancelled context succeeded")
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("ledger file changed by a failed save")
	}
}
