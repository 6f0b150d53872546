package moodstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/moodboard/internal/authz"
	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/storage"
	"github.com/goodtune/moodboard/internal/storage/memory"
	"github.com/rs/zerolog"
)

type testActor struct {
	id    string
	admin bool
}

func (a testActor) SessionID() string { return a.id }
func (a testActor) IsAdmin() bool     { return a.admin }

var (
	admin = testActor{id: "admin-session", admin: true}
	guest = testActor{id: "guest-session"}
)

func newTestStore(t *testing.T, kv storage.Store) (*Store, *TestClock) {
	t.Helper()
	clock := &TestClock{CurrentTime: time.UnixMilli(1700000000000)}
	store := New(context.Background(), kv, Options{
		Clock:  clock,
		Logger: zerolog.Nop(),
	})
	return store, clock
}

func yes(string) bool { return true }
func no(string) bool  { return false }

func TestUpsertIntoEmptyStore(t *testing.T) {
	store, clock := newTestStore(t, memory.New())

	if _, err := store.Upsert(context.Background(), admin, mood.Happiness, 7); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	latest := store.LatestByCategory()
	if len(latest) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(latest))
	}

	if latest[0].Category != mood.Happiness || latest[0].Value != 7 {
		t.Errorf("unexpected happiness entry: %+v", latest[0])
	}
	if latest[0].Timestamp == nil || !latest[0].Timestamp.Equal(clock.Now()) {
		t.Errorf("expected happiness timestamp %v, got %v", clock.Now(), latest[0].Timestamp)
	}
	for _, l := range latest[1:] {
		if l.Value != 0 || l.Timestamp != nil {
			t.Errorf("expected sentinel for %s, got %+v", l.Category, l)
		}
	}
	if latest[1].Category != mood.Bored || latest[2].Category != mood.Stress {
		t.Errorf("unexpected category order: %s, %s", latest[1].Category, latest[2].Category)
	}
}

func TestUpsertReplacesExistingCategory(t *testing.T) {
	kv := memory.New()
	store, clock := newTestStore(t, kv)
	ctx := context.Background()

	first, err := store.Upsert(ctx, admin, mood.Happiness, 7)
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, admin, mood.Stress, 4); err != nil {
		t.Fatalf("stress Upsert failed: %v", err)
	}

	clock.Advance(time.Minute)
	if _, err := store.Upsert(ctx, admin, mood.Happiness, 3); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	records := store.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}

	happiness := 0
	for _, r := range records {
		if r.Category == mood.Happiness {
			happiness++
			if r.Value != 3 {
				t.Errorf("expected happiness value 3, got %v", r.Value)
			}
			if r.Timestamp == first.Timestamp {
				t.Error("old timestamp survived replacement")
			}
		}
	}
	if happiness != 1 {
		t.Errorf("expected exactly one happiness record, got %d", happiness)
	}

	// The replacement is appended at the end
	if records[1].Category != mood.Happiness {
		t.Errorf("expected replacement at the end, got %+v", records)
	}

	// Persisted slot mirrors the in-memory list
	data, err := kv.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get slot failed: %v", err)
	}
	var persisted []mood.Record
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("persisted slot is not valid JSON: %v", err)
	}
	if len(persisted) != 2 || persisted[1].Value != 3 {
		t.Errorf("unexpected persisted records: %+v", persisted)
	}
}

func TestUpsertSequenceKeepsOneRecordPerCategory(t *testing.T) {
	store, clock := newTestStore(t, memory.New())
	ctx := context.Background()

	ops := []struct {
		category mood.Category
		value    float64
	}{
		{mood.Happiness, 1}, {mood.Bored, 2}, {mood.Happiness, 5}, {mood.Stress, 9},
		{mood.Bored, 0}, {mood.Stress, 10}, {mood.Happiness, 8}, {mood.Bored, 6},
	}

	want := map[mood.Category]float64{}
	for _, op := range ops {
		clock.Advance(time.Second)
		if _, err := store.Upsert(ctx, admin, op.category, op.value); err != nil {
			t.Fatalf("Upsert(%s, %v) failed: %v", op.category, op.value, err)
		}
		want[op.category] = op.value

		seen := map[mood.Category]int{}
		for _, r := range store.Records() {
			seen[r.Category]++
			if seen[r.Category] > 1 {
				t.Fatalf("duplicate record for %s", r.Category)
			}
		}
		for _, l := range store.LatestByCategory() {
			if v, ok := want[l.Category]; ok && l.Value != v {
				t.Fatalf("%s shows %v, want %v", l.Category, l.Value, v)
			}
		}
	}
}

func TestGuestCannotUpsert(t *testing.T) {
	kv := memory.New()
	store, _ := newTestStore(t, kv)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, admin, mood.Bored, 5); err != nil {
		t.Fatalf("admin Upsert failed: %v", err)
	}
	before, _ := kv.Get(ctx, DefaultKey)

	for _, actor := range []Actor{guest, nil} {
		_, err := store.Upsert(ctx, actor, mood.Bored, 9)
		if !errors.Is(err, mood.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	}

	if got := store.LatestByCategory()[1].Value; got != 5 {
		t.Errorf("guest changed bored value to %v", got)
	}
	after, _ := kv.Get(ctx, DefaultKey)
	if string(before) != string(after) {
		t.Errorf("guest changed persisted slot: %s -> %s", before, after)
	}
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	store, _ := newTestStore(t, memory.New())
	ctx := context.Background()

	if _, err := store.Upsert(ctx, admin, mood.Happiness, 11); !errors.Is(err, mood.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := store.Upsert(ctx, admin, mood.Category("Anger"), 1); !errors.Is(err, mood.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
	if n := len(store.Records()); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestClearConfirmed(t *testing.T) {
	kv := memory.New()
	store, _ := newTestStore(t, kv)
	ctx := context.Background()

	for _, c := range mood.Categories() {
		if _, err := store.Upsert(ctx, admin, c, 6); err != nil {
			t.Fatalf("Upsert %s failed: %v", c, err)
		}
	}

	var prompt string
	cleared, err := store.Clear(ctx, admin, func(p string) bool {
		prompt = p
		return true
	})
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !cleared {
		t.Fatal("expected store to be cleared")
	}
	if prompt != ClearPrompt {
		t.Errorf("unexpected prompt %q", prompt)
	}

	for _, l := range store.LatestByCategory() {
		if !l.Empty() || l.Value != 0 {
			t.Errorf("expected sentinel for %s, got %+v", l.Category, l)
		}
	}
	if _, err := kv.Get(ctx, DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected persisted slot to be removed, got %v", err)
	}
}

func TestClearDeclined(t *testing.T) {
	kv := memory.New()
	store, _ := newTestStore(t, kv)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, admin, mood.Stress, 2); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	cleared, err := store.Clear(ctx, admin, no)
	if err != nil {
		t.Fatalf("declined Clear returned error: %v", err)
	}
	if cleared {
		t.Fatal("declined clear must not clear")
	}
	if len(store.Records()) != 1 {
		t.Error("declined clear changed records")
	}
	if _, err := kv.Get(ctx, DefaultKey); err != nil {
		t.Errorf("declined clear touched the slot: %v", err)
	}
}

func TestClearProtocol(t *testing.T) {
	store, clock := newTestStore(t, memory.New())
	ctx := context.Background()

	t.Run("guest cannot request", func(t *testing.T) {
		if _, err := store.RequestClear(ctx, guest); !errors.Is(err, mood.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("token is single use", func(t *testing.T) {
		req, err := store.RequestClear(ctx, admin)
		if err != nil {
			t.Fatalf("RequestClear failed: %v", err)
		}
		if _, err := store.CommitClear(ctx, admin, req.Token, false); err != nil {
			t.Fatalf("CommitClear failed: %v", err)
		}
		if _, err := store.CommitClear(ctx, admin, req.Token, true); !errors.Is(err, ErrConfirmationNotFound) {
			t.Fatalf("expected ErrConfirmationNotFound on reuse, got %v", err)
		}
	})

	t.Run("token is bound to session", func(t *testing.T) {
		req, err := store.RequestClear(ctx, admin)
		if err != nil {
			t.Fatalf("RequestClear failed: %v", err)
		}
		other := testActor{id: "other-admin", admin: true}
		if _, err := store.CommitClear(ctx, other, req.Token, true); !errors.Is(err, ErrConfirmationNotFound) {
			t.Fatalf("expected ErrConfirmationNotFound for foreign session, got %v", err)
		}
	})

	t.Run("token expires", func(t *testing.T) {
		req, err := store.RequestClear(ctx, admin)
		if err != nil {
			t.Fatalf("RequestClear failed: %v", err)
		}
		if !req.ExpiresAt.Equal(clock.Now().Add(DefaultConfirmTTL)) {
			t.Errorf("unexpected expiry %v", req.ExpiresAt)
		}
		clock.Advance(DefaultConfirmTTL + time.Second)
		if _, err := store.CommitClear(ctx, admin, req.Token, true); !errors.Is(err, ErrConfirmationNotFound) {
			t.Fatalf("expected ErrConfirmationNotFound after expiry, got %v", err)
		}
	})
}

func TestLoadSoftFails(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"corrupt JSON", `{not json`, 0},
		{"unknown category", `[{"t":1,"v":1,"type":"Anger"}]`, 0},
		{"valid", `[{"t":1,"v":4,"type":"Bored"},{"t":2,"v":8,"type":"Stress"}]`, 2},
		{"out of range values skipped", `[{"t":1,"v":42,"type":"Happiness"},{"t":2,"v":-1,"type":"Bored"},{"t":3,"v":6,"type":"Stress"}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			if err := kv.Set(ctx, DefaultKey, []byte(tt.value)); err != nil {
				t.Fatalf("seed slot: %v", err)
			}
			store, _ := newTestStore(t, kv)
			if got := len(store.Records()); got != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, got)
			}
			for _, l := range store.LatestByCategory() {
				if l.Value < mood.MinValue || l.Value > mood.MaxValue {
					t.Errorf("%s loaded out of range value %v", l.Category, l.Value)
				}
			}
		})
	}
}

func TestLatestIsLastMatchWins(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()

	// Legacy data may hold duplicates; the later entry wins.
	if err := kv.Set(ctx, DefaultKey, []byte(`[{"t":1,"v":2,"type":"Bored"},{"t":5,"v":9,"type":"Bored"}]`)); err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	store, _ := newTestStore(t, kv)

	bored := store.LatestByCategory()[1]
	if bored.Value != 9 || bored.Timestamp.UnixMilli() != 5 {
		t.Errorf("expected last bored record, got %+v", bored)
	}

	// An upsert collapses the duplicates
	if _, err := store.Upsert(ctx, admin, mood.Bored, 1); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n := len(store.Records()); n != 1 {
		t.Errorf("expected duplicates to collapse to 1 record, got %d", n)
	}
}

func TestObserversSeeChanges(t *testing.T) {
	store, _ := newTestStore(t, memory.New())
	ctx := context.Background()

	var changes []Change
	store.OnChange(func(_ context.Context, c Change) {
		// Observers run outside the lock and may read the store
		_ = store.LatestByCategory()
		changes = append(changes, c)
	})

	if _, err := store.Upsert(ctx, admin, mood.Happiness, 2); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, admin, mood.Happiness, 4); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, guest, mood.Happiness, 6); err == nil {
		t.Fatal("expected guest upsert to fail")
	}
	if _, err := store.Clear(ctx, admin, yes); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}
	if changes[0].Replaced != nil {
		t.Error("first upsert should not replace anything")
	}
	if changes[1].Replaced == nil || changes[1].Replaced.Value != 2 {
		t.Errorf("second upsert should replace value 2, got %+v", changes[1].Replaced)
	}
	if changes[2].Kind != ChangeCleared {
		t.Errorf("expected cleared change, got %s", changes[2].Kind)
	}
}

func TestPolicyEngineAuthorizer(t *testing.T) {
	engine, err := authz.NewEngine("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	store := New(context.Background(), memory.New(), Options{
		Authorizer: engine,
		Logger:     zerolog.Nop(),
	})

	if _, err := store.Upsert(context.Background(), guest, mood.Stress, 3); !errors.Is(err, mood.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := store.Upsert(context.Background(), admin, mood.Stress, 3); err != nil {
		t.Fatalf("admin Upsert failed: %v", err)
	}
}

func TestAuthorizeView(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, memory.New())

	for _, actor := range []Actor{guest, admin, nil} {
		if err := store.Authorize(ctx, actor, authz.ActionView); err != nil {
			t.Errorf("view should be open by default, got %v", err)
		}
	}
	if err := store.Authorize(ctx, guest, authz.ActionClear); !errors.Is(err, mood.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for guest clear, got %v", err)
	}
}
