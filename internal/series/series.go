// Package series keeps bounded, insertion-ordered time series for display.
package series

import (
	"fmt"
	"iter"
	"slices"

	"energy_console/internal/models"
)

// DefaultMaxPoints is the rolling window length used when none is configured.
const DefaultMaxPoints = 60

// Standard series names.
const (
	Power       = "power"
	Temperature = "temperature"
	Humidity    = "humidity"
	Price       = "price"
)

// Series is a bounded FIFO of labels with one value column per component.
type Series struct {
	name       string
	components []string
	max        int
	labels     []string
	values     [][]float64 // values[c][i] is component c at labels[i]
}

func newSeries(name string, max int, components []string) *Series {
	if max <= 0 {
		max = DefaultMaxPoints
	}
	return &Series{
		name:       name,
		components: slices.Clone(components),
		max:        max,
		values:     make([][]float64, len(components)),
	}
}

// Append adds one label with exactly one value per component and evicts the
// oldest points beyond the bound. An arity mismatch is a wiring bug and panics.
func (s *Series) Append(label string, values ...float64) {
	if len(values) != len(s.components) {
		panic(fmt.Sprintf("series %q: got %d values for %d components", s.name, len(values), len(s.components)))
	}
	s.labels = append(s.labels, label)
	for c, v := range values {
		s.values[c] = append(s.values[c], v)
	}
	s.trim()
}

func (s *Series) trim() {
	over := len(s.labels) - s.max
	if over <= 0 {
		return
	}
	s.labels = slices.Delete(s.labels, 0, over)
	for c := range s.values {
		s.values[c] = slices.Delete(s.values[c], 0, over)
	}
}

// Len returns the number of retained points.
func (s *Series) Len() int { return len(s.labels) }

func (s *Series) snapshot() View {
	points := make([]models.SeriesPoint, len(s.labels))
	for i, label := range s.labels {
		vals := make([]float64, len(s.components))
		for c := range s.components {
			vals[c] = s.values[c][i]
		}
		points[i] = models.SeriesPoint{Label: label, Values: vals}
	}
	return View{Name: s.name, Components: slices.Clone(s.components), points: points}
}

// View is a read-only snapshot of a series taken at Get time.
type View struct {
	Name       string
	Components []string
	points     []models.SeriesPoint
}

// All iterates the snapshot oldest-first. It can be ranged over repeatedly.
func (v View) All() iter.Seq[models.SeriesPoint] {
	return func(yield func(models.SeriesPoint) bool) {
		for _, p := range v.points {
			if !yield(p) {
				return
			}
		}
	}
}

// Points returns a copy of the snapshot, oldest-first.
func (v View) Points() []models.SeriesPoint {
	return slices.Clone(v.points)
}

// Len returns the number of points in the snapshot.
func (v View) Len() int { return len(v.points) }

// Store holds every named series shared by the display consumers.
type Store struct {
	max    int
	series map[string]*Series
	order  []string
}

// NewStore returns an empty store whose series default to max points.
func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultMaxPoints
	}
	return &Store{max: max, series: make(map[string]*Series)}
}

// Define registers a series with its component names. Redefining replaces it.
func (st *Store) Define(name string, components ...string) {
	if len(components) == 0 {
		panic(fmt.Sprintf("series %q: at least one component required", name))
	}
	if _, ok := st.series[name]; !ok {
		st.order = append(st.order, name)
	}
	st.series[name] = newSeries(name, st.max, components)
}

// Append adds a point to a defined series. Unknown names panic like arity errors.
func (st *Store) Append(name, label string, values ...float64) {
	s, ok := st.series[name]
	if !ok {
		panic(fmt.Sprintf("series %q is not defined", name))
	}
	s.Append(label, values...)
}

// Replace drops the contents of a series and reloads it from points.
func (st *Store) Replace(name string, points []models.SeriesPoint) {
	s, ok := st.series[name]
	if !ok {
		panic(fmt.Sprintf("series %q is not defined", name))
	}
	fresh := newSeries(name, s.max, s.components)
	for _, p := range points {
		fresh.Append(p.Label, p.Values...)
	}
	st.series[name] = fresh
}

// Get returns a snapshot of the named series.
func (st *Store) Get(name string) (View, bool) {
	s, ok := st.series[name]
	if !ok {
		return View{}, false
	}
	return s.snapshot(), true
}

// Names lists defined series in definition order.
func (st *Store) Names() []string {
	return slices.Clone(st.order)
}
