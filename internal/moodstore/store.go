// Package moodstore owns the list of mood records, keeps it in sync with a
// persistent slot and notifies observers after every change.
package moodstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/moodboard/internal/authz"
	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultKey is the slot the record list is persisted under.
	DefaultKey = "moods"

	// DefaultConfirmTTL bounds how long a clear confirmation stays valid.
	DefaultConfirmTTL = 2 * time.Minute

	// ClearPrompt is shown to the user before the store is cleared.
	ClearPrompt = "Weet je zeker dat je alle mood-gegevens wilt wissen?"
)

// ErrConfirmationNotFound is returned when a clear is committed with an
// unknown, expired, already used or foreign confirmation token.
var ErrConfirmationNotFound = errors.New("moodstore: confirmation not found or expired")

// Actor is the session on whose behalf an operation runs.
type Actor interface {
	SessionID() string
	IsAdmin() bool
}

// Authorizer decides whether an action is permitted.
type Authorizer interface {
	Allow(ctx context.Context, in authz.Input) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, in authz.Input) (bool, error)

// Allow calls f.
func (f AuthorizerFunc) Allow(ctx context.Context, in authz.Input) (bool, error) {
	return f(ctx, in)
}

// adminOnly permits viewing to everyone and mutations to admins.
var adminOnly = AuthorizerFunc(func(_ context.Context, in authz.Input) (bool, error) {
	return in.Action == authz.ActionView || in.Admin, nil
})

// ChangeKind identifies what a mutation did.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeCleared  ChangeKind = "cleared"
)

// Change describes a completed mutation. Record is set for upserts and
// Replaced holds the record it displaced, if any.
type Change struct {
	Kind     ChangeKind
	Record   *mood.Record
	Replaced *mood.Record
}

// Observer is called after each successful mutation, outside the store lock.
type Observer func(ctx context.Context, change Change)

// ClearRequest is the first half of the clear protocol.
type ClearRequest struct {
	Token     string    `json:"token"`
	Prompt    string    `json:"prompt"`
	ExpiresAt time.Time `json:"expires_at"`
}

type pendingClear struct {
	sessionID string
	expiresAt time.Time
}

// Options configures a Store. Zero values select defaults.
type Options struct {
	Key        string
	Clock      Clock
	Authorizer Authorizer
	ConfirmTTL time.Duration
	Logger     zerolog.Logger
}

// Store holds at most one record per category. All operations are
// serialized.
type Store struct {
	kv         storage.Store
	key        string
	clock      Clock
	authz      Authorizer
	confirmTTL time.Duration
	logger     zerolog.Logger

	mu        sync.Mutex
	records   []mood.Record
	pending   map[string]pendingClear
	observers []Observer
}

// New creates a store backed by kv and loads the persisted records. A missing
// or unreadable slot yields an empty store.
func New(ctx context.Context, kv storage.Store, opts Options) *Store {
	s := &Store{
		kv:         kv,
		key:        opts.Key,
		clock:      opts.Clock,
		authz:      opts.Authorizer,
		confirmTTL: opts.ConfirmTTL,
		logger:     opts.Logger.With().Str("component", "moodstore").Logger(),
		pending:    make(map[string]pendingClear),
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.authz == nil {
		s.authz = adminOnly
	}
	if s.confirmTTL <= 0 {
		s.confirmTTL = DefaultConfirmTTL
	}

	s.records = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []mood.Record {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to read persisted moods, starting empty")
		}
		return nil
	}

	var records []mood.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Persisted moods are corrupt, starting empty")
		return nil
	}

	valid := records[:0]
	for _, r := range records {
		if err := mood.ValidateValue(r.Value); err != nil {
			s.logger.Warn().Err(err).Str("category", r.Category.String()).Msg("Skipping persisted mood with invalid value")
			continue
		}
		valid = append(valid, r)
	}

	s.logger.Info().Int("count", len(valid)).Str("key", s.key).Msg("Loaded persisted moods")
	return valid
}

// OnChange registers an observer.
func (s *Store) OnChange(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Store) notify(ctx context.Context, change Change) {
	s.mu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ctx, change)
	}
}

func (s *Store) authorize(ctx context.Context, actor Actor, action authz.Action) error {
	admin := actor != nil && actor.IsAdmin()

	allowed, err := s.authz.Allow(ctx, authz.Input{Action: action, Admin: admin})
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s requires admin mode", mood.ErrUnauthorized, action)
	}
	return nil
}

// Authorize checks action against the store's authorizer. Read paths use it
// with authz.ActionView.
func (s *Store) Authorize(ctx context.Context, actor Actor, action authz.Action) error {
	return s.authorize(ctx, actor, action)
}

func (s *Store) persist(ctx context.Context, records []mood.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal moods: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("persist moods: %w", err)
	}
	return nil
}

// Upsert replaces the record for category with a new one stamped now and
// persists the full list.
func (s *Store) Upsert(ctx context.Context, actor Actor, category mood.Category, value float64) (mood.Record, error) {
	if err := s.authorize(ctx, actor, authz.ActionAdd); err != nil {
		return mood.Record{}, err
	}

	record, err := mood.NewRecord(category, value, s.clock.Now())
	if err != nil {
		return mood.Record{}, err
	}

	s.mu.Lock()
	next := make([]mood.Record, 0, len(s.records)+1)
	var replaced *mood.Record
	for _, r := range s.records {
		if r.Category == category {
			old := r
			replaced = &old
			continue
		}
		next = append(next, r)
	}
	next = append(next, record)

	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return mood.Record{}, err
	}
	s.records = next
	s.mu.Unlock()

	s.logger.Info().
		Str("category", category.String()).
		Float64("value", value).
		Bool("replaced", replaced != nil).
		Msg("Mood recorded")

	s.notify(ctx, Change{Kind: ChangeUpserted, Record: &record, Replaced: replaced})
	return record, nil
}

// RequestClear starts the clear protocol and returns a single-use token that
// must be committed by the same session before it expires.
func (s *Store) RequestClear(ctx context.Context, actor Actor) (ClearRequest, error) {
	if err := s.authorize(ctx, actor, authz.ActionClear); err != nil {
		return ClearRequest{}, err
	}

	now := s.clock.Now()
	req := ClearRequest{
		Token:     uuid.NewString(),
		Prompt:    ClearPrompt,
		ExpiresAt: now.Add(s.confirmTTL),
	}

	s.mu.Lock()
	for token, p := range s.pending {
		if now.After(p.expiresAt) {
			delete(s.pending, token)
		}
	}
	s.pending[req.Token] = pendingClear{sessionID: actorID(actor), expiresAt: req.ExpiresAt}
	s.mu.Unlock()

	return req, nil
}

// CommitClear finishes the clear protocol. When confirmed is false the token
// is consumed and nothing else changes. It reports whether the store was
// cleared.
func (s *Store) CommitClear(ctx context.Context, actor Actor, token string, confirmed bool) (bool, error) {
	if err := s.authorize(ctx, actor, authz.ActionClear); err != nil {
		return false, err
	}

	s.mu.Lock()
	p, ok := s.pending[token]
	delete(s.pending, token)
	if !ok || s.clock.Now().After(p.expiresAt) || p.sessionID != actorID(actor) {
		s.mu.Unlock()
		return false, ErrConfirmationNotFound
	}

	if !confirmed {
		s.mu.Unlock()
		s.logger.Debug().Msg("Clear declined")
		return false, nil
	}

	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("remove persisted moods: %w", err)
	}
	cleared := len(s.records)
	s.records = nil
	s.mu.Unlock()

	s.logger.Info().Int("count", cleared).Msg("Moods cleared")

	s.notify(ctx, Change{Kind: ChangeCleared})
	return true, nil
}

// Clear runs both halves of the clear protocol, asking confirm in between.
func (s *Store) Clear(ctx context.Context, actor Actor, confirm func(prompt string) bool) (bool, error) {
	req, err := s.RequestClear(ctx, actor)
	if err != nil {
		return false, err
	}
	return s.CommitClear(ctx, actor, req.Token, confirm(req.Prompt))
}

// LatestByCategory returns, in declaration order, the most recently inserted
// record of each category or a zero sentinel.
func (s *Store) LatestByCategory() []mood.Latest {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := mood.Categories()
	latest := make([]mood.Latest, len(categories))
	for i, c := range categories {
		latest[i] = mood.Latest{Category: c}
		for j := len(s.records) - 1; j >= 0; j-- {
			if s.records[j].Category == c {
				ts := s.records[j].Time()
				latest[i].Value = s.records[j].Value
				latest[i].Timestamp = &ts
				break
			}
		}
	}
	return latest
}

// Records returns a copy of the records in insertion order.
func (s *Store) Records() []mood.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]mood.Record, len(s.records))
	copy(out, s.records)
	return out
}

func actorID(actor Actor) string {
	if actor == nil {
		return ""
	}
	return actor.SessionID()
}
