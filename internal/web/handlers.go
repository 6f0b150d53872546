package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goodtune/moodboard/internal/authz"
	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/metrics"
	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/moodstore"
	"github.com/goodtune/moodboard/internal/session"
	"github.com/gorilla/mux"
)

// User facing copy.
const (
	NoticeAddUnauthorized   = "Alleen admin kan moods indienen. Log in als admin."
	NoticeClearUnauthorized = "Alleen admin kan mood-gegevens wissen. Log in als admin."
	NoticeViewUnauthorized  = "Je hebt geen toegang tot het moodboard."
	LabelLogin              = "Login als admin"
	LabelLogout             = "Logout admin"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4096

type indexData struct {
	Token            string
	Admin            bool
	ToggleLabel      string
	PasswordRequired bool
	Categories       []mood.Category
	Min              int
	Max              int
	Dates            []chart.DateRow
	Timeline         []TimelineItem
}

// handleIndex renders the page with a fresh guest session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, token, err := s.sessions.Create()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create session")
		WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	metrics.SetSessions(s.sessions.Counts())

	data := indexData{
		Token:            token,
		ToggleLabel:      LabelLogin,
		PasswordRequired: s.sessions.PasswordRequired(),
		Categories:       mood.Categories(),
		Min:              mood.MinValue,
		Max:              mood.MaxValue,
		Dates:            s.projector.DateRows(),
		Timeline:         s.config.Timeline,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

func (s *Server) sessionResponse(sess session.Session) SessionResponse {
	label := LabelLogin
	if sess.IsAdmin() {
		label = LabelLogout
	}
	return SessionResponse{
		Mode:             string(sess.Mode()),
		Admin:            sess.IsAdmin(),
		PasswordRequired: s.sessions.PasswordRequired(),
		ToggleLabel:      label,
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Missing or expired session")
		return
	}
	WriteJSON(w, http.StatusOK, s.sessionResponse(sess))
}

// handleEndSession drops the page session when the page is closed.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Missing or expired session")
		return
	}
	s.sessions.Remove(sess.ID)
	metrics.SetSessions(s.sessions.Counts())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Missing or expired session")
		return
	}

	var req ToggleRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	updated, err := s.sessions.Toggle(r.Context(), sess.ID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			WriteError(w, http.StatusUnauthorized, "Onjuist wachtwoord")
		case errors.Is(err, session.ErrSessionNotFound):
			WriteError(w, http.StatusUnauthorized, "Missing or expired session")
		default:
			s.logger.Error().Err(err).Msg("Toggle failed")
			WriteError(w, http.StatusInternalServerError, "Toggle failed")
		}
		return
	}
	metrics.SetSessions(s.sessions.Counts())

	WriteJSON(w, http.StatusOK, s.sessionResponse(updated))
}

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	if !s.canView(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, MoodsResponse{
		Records: s.store.Records(),
		Latest:  s.store.LatestByCategory(),
		Dates:   s.projector.DateRows(),
	})
}

func (s *Server) handleAddMood(w http.ResponseWriter, r *http.Request) {
	var req AddMoodRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	category := mood.Happiness
	if strings.TrimSpace(req.Category) != "" {
		parsed, err := mood.ParseCategory(req.Category)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = parsed
	}

	record, err := s.store.Upsert(r.Context(), s.actor(r), category, *req.Value)
	if err != nil {
		s.writeStoreError(w, err, authz.ActionAdd)
		return
	}

	WriteJSON(w, http.StatusCreated, record)
}

func (s *Server) handleRequestClear(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.RequestClear(r.Context(), s.actor(r))
	if err != nil {
		s.writeStoreError(w, err, authz.ActionClear)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

func (s *Server) handleCommitClear(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req CommitClearRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	cleared, err := s.store.CommitClear(r.Context(), s.actor(r), token, req.Confirmed)
	if err != nil {
		s.writeStoreError(w, err, authz.ActionClear)
		return
	}
	WriteJSON(w, http.StatusOK, ClearResultResponse{Cleared: cleared})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !s.canView(w, r) {
		return
	}
	WriteJSON(w, http.StatusOK, ChartResponse{
		Data:   s.projector.Project(),
		Config: s.projector.Options(),
	})
}

func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	if !s.canView(w, r) {
		return
	}
	category, err := mood.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	text, err := s.projector.Tooltip(category)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, TooltipResponse{Category: category, Text: text})
}

// actor returns the request's session, or nil for requests without one.
func (s *Server) actor(r *http.Request) moodstore.Actor {
	if sess, ok := SessionFromContext(r.Context()); ok {
		return sess
	}
	return nil
}

// canView writes an error and returns false when the request's session may
// not read the board.
func (s *Server) canView(w http.ResponseWriter, r *http.Request) bool {
	if err := s.store.Authorize(r.Context(), s.actor(r), authz.ActionView); err != nil {
		s.writeStoreError(w, err, authz.ActionView)
		return false
	}
	return true
}

// decode reads and validates a JSON body. An empty body is accepted when
// optional is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return false
		}
	}

	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, action authz.Action) {
	switch {
	case errors.Is(err, mood.ErrUnauthorized):
		metrics.UnauthorizedTotal.WithLabelValues(string(action)).Inc()
		notice := NoticeAddUnauthorized
		switch action {
		case authz.ActionClear:
			notice = NoticeClearUnauthorized
		case authz.ActionView:
			notice = NoticeViewUnauthorized
		}
		WriteError(w, http.StatusForbidden, notice)
	case errors.Is(err, mood.ErrInvalidValue), errors.Is(err, mood.ErrUnknownCategory):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, moodstore.ErrConfirmationNotFound):
		WriteError(w, http.StatusNotFound, "Bevestiging niet gevonden of verlopen")
	default:
		s.logger.Error().Err(err).Str("action", string(action)).Msg("Store operation failed")
		WriteError(w, http.StatusInternalServerError, "Operation failed")
	}
}
