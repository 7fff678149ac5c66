package models

// SeriesPoint is one labelled sample of a series; Values has one entry per component.
type SeriesPoint struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// SeriesSnapshot is a named series as served to readers.
type SeriesSnapshot struct {
	Name       string        `json:"name"`
	Components []string      `json:"components"`
	Points     []SeriesPoint `json:"points"`
}
