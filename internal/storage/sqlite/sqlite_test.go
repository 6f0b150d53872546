package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/moodboard/internal/storage"
)

func TestStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "moodboard.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if _, err := store.Get(ctx, "moods"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, value := range []string{`[{"t":1,"v":2,"type":"Stress"}]`, `[]`} {
		if err := store.Set(ctx, "moods", []byte(value)); err != nil {
			t.Fatalf("set %s: %v", value, err)
		}
		got, err := store.Get(ctx, "moods")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != value {
			t.Errorf("expected %s, got %s", value, got)
		}
	}

	if err := store.Delete(ctx, "moods"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "moods"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
