package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/metrics"
)

// streamPingInterval keeps idle chart streams open through proxies.
var streamPingInterval = 25 * time.Second

// handleStream sends the current dataset and every later one as
// server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.canView(w, r) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	updates, cancel := s.hub.Subscribe()
	defer cancel()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	// The hub only primes subscribers after the first change, so start
	// with a fresh projection.
	if _, ok := s.hub.Latest(); !ok {
		if err := writeEvent(w, s.projector.Project()); err != nil {
			return
		}
		flusher.Flush()
	}

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case ds, open := <-updates:
			if !open {
				return
			}
			if err := writeEvent(w, ds); err != nil {
				s.logger.Debug().Err(err).Msg("Chart stream closed")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ds chart.Dataset) error {
	data, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: chart\ndata: %s\n\n", data)
	return err
}
