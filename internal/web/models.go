package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/mood"
)

// validate is the shared request validator.
var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("mood_category", validateCategory); err != nil {
		panic(fmt.Sprintf("failed to register mood_category validator: %v", err))
	}
}

// validateCategory accepts any known category name and the empty string,
// which defaults to Happiness.
func validateCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := mood.ParseCategory(value)
	return err == nil
}

// ToggleRequest switches the session between guest and admin mode.
type ToggleRequest struct {
	Password string `json:"password" validate:"max=256"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	Mode             string `json:"mode"`
	Admin            bool   `json:"admin"`
	PasswordRequired bool   `json:"password_required"`
	ToggleLabel      string `json:"toggle_label"`
}

// AddMoodRequest records a rating. Value is a pointer so a missing value
// can be told apart from 0.
type AddMoodRequest struct {
	Category string   `json:"category" validate:"mood_category"`
	Value    *float64 `json:"value" validate:"required,gte=0,lte=10"`
}

// CommitClearRequest answers a clear confirmation.
type CommitClearRequest struct {
	Confirmed bool `json:"confirmed"`
}

// MoodsResponse is the full store view.
type MoodsResponse struct {
	Records []mood.Record   `json:"records"`
	Latest  []mood.Latest   `json:"latest"`
	Dates   []chart.DateRow `json:"dates"`
}

// ChartResponse carries the dataset and the chart configuration.
type ChartResponse struct {
	Data   chart.Dataset `json:"data"`
	Config chart.Config  `json:"config"`
}

// TooltipResponse carries the hover text for one bar.
type TooltipResponse struct {
	Category mood.Category `json:"category"`
	Text     string        `json:"text"`
}

// ClearResultResponse reports the outcome of a clear commit.
type ClearResultResponse struct {
	Cleared bool `json:"cleared"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// TimelineItem is a cosmetic entry on the page timeline.
type TimelineItem struct {
	Label   string
	Details string
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
