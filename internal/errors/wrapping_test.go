package errors_test

import (
	"context"
	"strings"
	"testing"

	"github.com/contextmemory/workmem/internal/store"
)

// TestErrorWrapping_SQLiteItemStore verifies store open failures are
// wrapped with context about the path that could not be opened.
func TestErrorWrapping_SQLiteItemStore(t *testing.T) {
	_, err := store.NewSQLiteItemStore("/nonexistent/deeply/nested/path/items.db")
	if err == nil {
		t.Skip("expected error opening store under a nonexistent directory")
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "open") && !strings.Contains(errMsg, "store") && !strings.Contains(errMsg, "database") {
		t.Errorf("error should contain context about opening the store, got: %s", errMsg)
	}
}

// TestErrorWrapping_ItemStoreGetMissing verifies a lookup miss on an empty
// store returns ok=false rather than an error, so callers can't mistake
// "not found" for a storage failure.
func TestErrorWrapping_ItemStoreGetMissing(t *testing.T) {
	s, err := store.NewSQLiteItemStore(t.TempDir() + "/items.db")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get(context.Background(), "missing-id")
	if err != nil {
		t.Errorf("expected no error for a missing id, got: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a missing id")
	}
}
