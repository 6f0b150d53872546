// Package chart projects the mood store onto the bar chart dataset and
// pushes it to a rendering sink.
package chart

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goodtune/moodboard/internal/mood"
	"github.com/goodtune/moodboard/internal/moodstore"
	"github.com/rs/zerolog"
)

const (
	// DatasetLabel names the single dataset on the chart.
	DatasetLabel = "Current moods"

	// DefaultFillAlpha is the bar fill opacity.
	DefaultFillAlpha = 0.9

	// DefaultDateFormat renders record timestamps for tooltips and the date list.
	DefaultDateFormat = "02-01-2006 15:04:05"

	// NoDate is the tooltip text for a category without a record.
	NoDate = "No date"

	// DatePlaceholder is shown in the date list for a category without a record.
	DatePlaceholder = "-"
)

// Source provides the latest value per category.
type Source interface {
	LatestByCategory() []mood.Latest
}

// Sink receives every recomputed dataset.
type Sink interface {
	Render(ds Dataset)
}

// Dataset is the chart payload handed to the renderer.
type Dataset struct {
	Labels   []mood.Category `json:"labels"`
	Datasets []Series        `json:"datasets"`
}

// Series is one bar series.
type Series struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderColor     []string  `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth"`
}

// DateRow is one line of the date list under the chart.
type DateRow struct {
	Category mood.Category `json:"category"`
	Date     string        `json:"date"`
}

// Options configures a Projector.
type Options struct {
	Reverse    bool
	FillAlpha  float64
	DateFormat string
	Location   *time.Location
	Logger     zerolog.Logger
}

// Projector derives chart datasets from a Source.
type Projector struct {
	source     Source
	sink       Sink
	reverse    bool
	fillAlpha  float64
	dateFormat string
	location   *time.Location
	logger     zerolog.Logger

	// refreshMu keeps frames reaching the sink in projection order
	refreshMu sync.Mutex
}

// NewProjector creates a projector reading from source and rendering to sink.
// sink may be nil, in which case Refresh only projects.
func NewProjector(source Source, sink Sink, opts Options) *Projector {
	p := &Projector{
		source:     source,
		sink:       sink,
		reverse:    opts.Reverse,
		fillAlpha:  opts.FillAlpha,
		dateFormat: opts.DateFormat,
		location:   opts.Location,
		logger:     opts.Logger.With().Str("component", "chart").Logger(),
	}
	if p.fillAlpha <= 0 || p.fillAlpha > 1 {
		p.fillAlpha = DefaultFillAlpha
	}
	if p.dateFormat == "" {
		p.dateFormat = DefaultDateFormat
	}
	if p.location == nil {
		p.location = time.Local
	}
	return p
}

// Project computes the dataset for the current store contents. Labels,
// values and colours are reversed together when the projector is reversed.
func (p *Projector) Project() Dataset {
	latest := p.source.LatestByCategory()

	labels := make([]mood.Category, len(latest))
	series := Series{
		Label:           DatasetLabel,
		Data:            make([]float64, len(latest)),
		BackgroundColor: make([]string, len(latest)),
		BorderColor:     make([]string, len(latest)),
		BorderWidth:     1,
	}

	for i, l := range latest {
		j := i
		if p.reverse {
			j = len(latest) - 1 - i
		}
		color := l.Category.Color()
		labels[j] = l.Category
		series.Data[j] = l.Value
		series.BackgroundColor[j] = color.RGBA(p.fillAlpha)
		series.BorderColor[j] = color.Hex()
	}

	return Dataset{Labels: labels, Datasets: []Series{series}}
}

// Refresh projects and hands the dataset to the sink. Concurrent refreshes
// are serialized so the last frame rendered is always the newest projection.
func (p *Projector) Refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	ds := p.Project()
	if p.sink != nil {
		p.sink.Render(ds)
	}
	p.logger.Debug().Interface("data", ds.Datasets[0].Data).Msg("Chart refreshed")
}

// Observe returns a store observer that refreshes the chart after each change.
func (p *Projector) Observe() moodstore.Observer {
	return func(ctx context.Context, _ moodstore.Change) {
		p.Refresh(ctx)
	}
}

// Tooltip returns the hover text for a category.
func (p *Projector) Tooltip(category mood.Category) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("%w: %q", mood.ErrUnknownCategory, category)
	}

	l := p.latest(category)
	date := NoDate
	if !l.Empty() {
		date = p.formatTime(*l.Timestamp)
	}
	return fmt.Sprintf("%s: %s — %s", category, formatValue(l.Value), date), nil
}

// DateRows returns one row per category in declaration order.
func (p *Projector) DateRows() []DateRow {
	latest := p.source.LatestByCategory()
	rows := make([]DateRow, len(latest))
	for i, l := range latest {
		rows[i] = DateRow{Category: l.Category, Date: DatePlaceholder}
		if !l.Empty() {
			rows[i].Date = p.formatTime(*l.Timestamp)
		}
	}
	return rows
}

func (p *Projector) latest(category mood.Category) mood.Latest {
	for _, l := range p.source.LatestByCategory() {
		if l.Category == category {
			return l
		}
	}
	return mood.Latest{Category: category}
}

func (p *Projector) formatTime(t time.Time) string {
	return t.In(p.location).Format(p.dateFormat)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
