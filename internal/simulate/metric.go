package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	ErrInvalidRange = errors.New("metric range is inverted")
	ErrNotFinite    = errors.New("metric value is not finite")
	ErrOutOfRange   = errors.New("metric value is outside its range")
)

// Metric is a named value that random-walks inside [Min, Max].
type Metric struct {
	Name   string
	Value  float64
	Min    float64
	Max    float64
	Jitter float64
}

// NewMetric builds a metric, clamping the starting value into range.
func NewMetric(name string, value, min, max, jitter float64) Metric {
	return Metric{
		Name:   name,
		Value:  Clamp(value, min, max),
		Min:    min,
		Max:    max,
		Jitter: jitter,
	}
}

// Step advances the metric by one random-walk tick and returns the new value.
func (m *Metric) Step(r *rand.Rand) float64 {
	m.Value = Walk(r, m.Value, m.Min, m.Max, m.Jitter)
	return m.Value
}

// Validate checks the invariants every metric keeps between ticks.
func (m Metric) Validate() error {
	if m.Min > m.Max {
		return fmt.Errorf("%s: %w (%g > %g)", m.Name, ErrInvalidRange, m.Min, m.Max)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%s: %w", m.Name, ErrNotFinite)
	}
	if m.Value < m.Min || m.Value > m.Max {
		return fmt.Errorf("%s: %w (%g not in [%g, %g])", m.Name, ErrOutOfRange, m.Value, m.Min, m.Max)
	}
	return nil
}

// Rounded returns the value rounded to one decimal.
func (m Metric) Rounded() float64 {
	return Round(m.Value, 1)
}
