package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/moodboard/internal/config"
	"github.com/goodtune/moodboard/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // Full address "host:port"
		Port:         0,         // Not used when host contains port
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "moodboard:",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestStore_SetGet(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	value := []byte(`[{"t":1,"v":7,"type":"Happiness"}]`)

	if err := store.Set(ctx, "moods", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "moods")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("Expected %s, got %s", value, got)
	}

	// Values live under the configured prefix
	raw, err := mr.Get("moodboard:moods")
	if err != nil {
		t.Fatalf("miniredis Get failed: %v", err)
	}
	if raw != string(value) {
		t.Errorf("Expected raw value %s, got %s", value, raw)
	}
	if ttl := mr.TTL("moodboard:moods"); ttl != 0 {
		t.Errorf("Expected no TTL, got %v", ttl)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	_, err := store.Get(context.Background(), "moods")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Set(ctx, "moods", []byte("[]")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Delete(ctx, "moods"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("moodboard:moods") {
		t.Error("Expected key to be removed")
	}

	// Deleting again is not an error
	if err := store.Delete(ctx, "moods"); err != nil {
		t.Fatalf("Second Delete failed: %v", err)
	}
}

func TestOpen_InvalidTimeout(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "soon",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err == nil {
		t.Fatal("Expected error for invalid dial timeout")
	}
}
