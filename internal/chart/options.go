package chart

// Config is the Chart.js options object for the mood bar chart.
type Config struct {
	Type    string       `json:"type"`
	Options ChartOptions `json:"options"`
}

type ChartOptions struct {
	Responsive          bool            `json:"responsive"`
	MaintainAspectRatio bool            `json:"maintainAspectRatio"`
	IndexAxis           string          `json:"indexAxis"`
	Scales              Scales          `json:"scales"`
	Plugins             Plugins         `json:"plugins"`
	Datasets            DatasetDefaults `json:"datasets"`
}

type Scales struct {
	X XAxis `json:"x"`
	Y YAxis `json:"y"`
}

type XAxis struct {
	Ticks   XTicks `json:"ticks"`
	Reverse bool   `json:"reverse"`
}

type XTicks struct {
	AutoSkip bool `json:"autoSkip"`
}

type YAxis struct {
	BeginAtZero bool   `json:"beginAtZero"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
	Ticks       YTicks `json:"ticks"`
}

type YTicks struct {
	StepSize  int `json:"stepSize"`
	Precision int `json:"precision"`
}

type Plugins struct {
	Legend Legend `json:"legend"`
}

type Legend struct {
	Display bool `json:"display"`
}

type DatasetDefaults struct {
	Bar BarDefaults `json:"bar"`
}

type BarDefaults struct {
	CategoryPercentage float64 `json:"categoryPercentage"`
	BarPercentage      float64 `json:"barPercentage"`
	MaxBarThickness    int     `json:"maxBarThickness"`
}

// Options returns the chart configuration. Tooltip text is fetched from the
// tooltip endpoint by the page, so no callback is encoded here.
func (p *Projector) Options() Config {
	return Config{
		Type: "bar",
		Options: ChartOptions{
			Responsive:          true,
			MaintainAspectRatio: false,
			IndexAxis:           "x",
			Scales: Scales{
				X: XAxis{Ticks: XTicks{AutoSkip: false}, Reverse: p.reverse},
				Y: YAxis{
					BeginAtZero: true,
					Min:         0,
					Max:         10,
					Ticks:       YTicks{StepSize: 1, Precision: 0},
				},
			},
			Plugins: Plugins{Legend: Legend{Display: false}},
			Datasets: DatasetDefaults{
				Bar: BarDefaults{
					CategoryPercentage: 0.7,
					BarPercentage:      0.7,
					MaxBarThickness:    160,
				},
			},
		},
	}
}
