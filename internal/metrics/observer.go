package metrics

import (
	"context"
	"sync"

	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/moodstore"
)

// currentMu orders snapshot reads with gauge writes across observers.
var currentMu sync.Mutex

// StoreObserver keeps the store counters and gauges in step with changes.
func StoreObserver(source interface{ LatestByCategory() []mood.Latest }) moodstore.Observer {
	return func(_ context.Context, change moodstore.Change) {
		switch change.Kind {
		case moodstore.ChangeUpserted:
			if change.Record != nil {
				MoodsRecorded.WithLabelValues(change.Record.Category.String()).Inc()
			}
		case moodstore.ChangeCleared:
			MoodsCleared.Inc()
		}
		currentMu.Lock()
		SetCurrent(source.LatestByCategory())
		currentMu.Unlock()
	}
}

// SetCurrent sets the current mood gauge for every category.
func SetCurrent(latest []mood.Latest) {
	for _, l := range latest {
		CurrentMood.WithLabelValues(l.Category.String()).Set(l.Value)
	}
}

// SetSessions records the live session counts.
func SetSessions(guests, admins int) {
	ActiveSessions.WithLabelValues("guest").Set(float64(guests))
	ActiveSessions.WithLabelValues("admin").Set(float64(admins))
}
