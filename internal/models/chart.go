package models

// ChartKind names a chart strategy.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
)

// ChartPoint is one x/y sample of a scatter series.
type ChartPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

// ChartSeries is one data series. Bar and line charts use Values aligned with
// the chart labels, scatter charts use Points.
type ChartSeries struct {
	Name   string       `json:"name"`
	Values []float64    `json:"values,omitempty"`
	Points []ChartPoint `json:"points,omitempty"`
}

// ChartData is a renderer-agnostic chart description.
type ChartData struct {
	Kind   ChartKind     `json:"kind"`
	Title  string        `json:"title"`
	XLabel string        `json:"x_label,omitempty"`
	YLabel string        `json:"y_label,omitempty"`
	Labels []string      `json:"labels,omitempty"`
	Series []ChartSeries `json:"series"`
}
