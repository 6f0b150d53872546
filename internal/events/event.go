// Package events publishes mood changes to an AMQP exchange.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/moodstore"
	"github.com/rs/zerolog"
)

// Type names the kind of event.
type Type string

const (
	TypeRecorded Type = "mood.recorded"
	TypeCleared  Type = "mood.cleared"
)

// Event is the message body published for every store change.
type Event struct {
	Type      Type          `json:"type"`
	Category  mood.Category `json:"category,omitempty"`
	Value     *float64      `json:"value,omitempty"`
	Previous  *float64      `json:"previous,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// FromChange converts a store change into an event. Clears are stamped with
// the supplied time.
func FromChange(change moodstore.Change, now time.Time) Event {
	if change.Kind == moodstore.ChangeCleared || change.Record == nil {
		return Event{Type: TypeCleared, Timestamp: now.UTC()}
	}

	v := change.Record.Value
	ev := Event{
		Type:      TypeRecorded,
		Category:  change.Record.Category,
		Value:     &v,
		Timestamp: change.Record.Time().UTC(),
	}
	if change.Replaced != nil {
		prev := change.Replaced.Value
		ev.Previous = &prev
	}
	return ev
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Observer returns a store observer that publishes every change. Failures
// are logged and never reach the caller of the store operation.
func Observer(pub Publisher, logger zerolog.Logger) moodstore.Observer {
	logger = logger.With().Str("component", "events").Logger()
	return func(ctx context.Context, change moodstore.Change) {
		ev := FromChange(change, time.Now())
		if err := pub.Publish(ctx, ev); err != nil {
			logger.Error().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish mood event")
		}
	}
}
