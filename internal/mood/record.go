package mood

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// MinValue and MaxValue bound a mood rating.
	MinValue = 0
	MaxValue = 10
)

var (
	// ErrUnauthorized is returned when the session may not perform the action.
	ErrUnauthorized = errors.New("mood: unauthorized")

	// ErrUnknownCategory is returned for category names outside the fixed set.
	ErrUnknownCategory = errors.New("mood: unknown category")

	// ErrInvalidValue is returned for ratings outside [MinValue, MaxValue].
	ErrInvalidValue = errors.New("mood: invalid value")
)

// Record is a single timestamped rating for one category.
// The JSON layout matches the stored slot format.
type Record struct {
	Timestamp int64    `json:"t"`
	Value     float64  `json:"v"`
	Category  Category `json:"type"`
}

// NewRecord builds a record stamped at the given time.
func NewRecord(category Category, value float64, at time.Time) (Record, error) {
	if !category.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if err := ValidateValue(value); err != nil {
		return Record{}, err
	}
	return Record{
		Timestamp: at.UnixMilli(),
		Value:     value,
		Category:  category,
	}, nil
}

// Time returns the record timestamp.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// ValidateValue checks that v is a finite rating within bounds.
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinValue || v > MaxValue {
		return fmt.Errorf("%w: %v (must be between %d and %d)", ErrInvalidValue, v, MinValue, MaxValue)
	}
	return nil
}

// Latest is the current value for a category. Timestamp is nil when no
// record exists, in which case Value is 0.
type Latest struct {
	Category  Category   `json:"category"`
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp"`
}

// Empty reports whether the entry is the no-record sentinel.
func (l Latest) Empty() bool {
	return l.Timestamp == nil
}
