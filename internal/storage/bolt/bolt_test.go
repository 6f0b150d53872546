package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/moodboard/internal/storage"
)

func TestSlotLifecycle(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if _, err := store.Get(ctx, "moods"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.Set(ctx, "moods", []byte(`[{"t":1,"v":3,"type":"Bored"}]`)); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if err := store.Set(ctx, "moods", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite slot: %v", err)
	}

	value, err := store.Get(ctx, "moods")
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if string(value) != "[]" {
		t.Fatalf("expected overwritten value, got %s", value)
	}

	if err := store.Delete(ctx, "moods"); err != nil {
		t.Fatalf("delete slot: %v", err)
	}
	if err := store.Delete(ctx, "moods"); err != nil {
		t.Fatalf("delete missing slot: %v", err)
	}
	if _, err := store.Get(ctx, "moods"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestReopenKeepsValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "moodboard.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Set(context.Background(), "moods", []byte("[]")); err != nil {
		t.Fatalf("set slot: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	value, err := reopened.Get(context.Background(), "moods")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(value) != "[]" {
		t.Fatalf("expected [], got %s", value)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "moodboard.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
