// Package panels holds the simulated dashboard panels. Each panel owns its
// state, its random source and the schedules that mutate it; the board
// drives the schedules and reads snapshots.
package panels

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/mbd888/guardlens/internal/simulate"
)

var (
	ErrUnknownControl = errors.New("panels: unknown control")
	ErrInvalidValue   = errors.New("panels: invalid value")
	ErrUnknownReport  = errors.New("panels: unknown report")
	ErrBusy           = errors.New("panels: report already generating")
)

// Panel is a self-updating unit of simulated telemetry.
type Panel interface {
	ID() string
	Schedules() []simulate.Schedule
	Snapshot() any
	Gauges() map[string]float64
}

// Disposer is implemented by panels that hold one-shot timers.
type Disposer interface {
	Dispose()
}

// Factory builds a fresh panel. Panels are never reused across mounts.
type Factory func() Panel

// Status labels shared by several panels.
const (
	StatusActive   = "active"
	StatusStandby  = "standby"
	StatusTraining = "training"
	StatusUpdating = "updating"
)

// Reading is one labelled gauge in a snapshot.
type Reading struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

func reading(label string, m simulate.Metric, unit string) Reading {
	return Reading{Label: label, Value: m.Rounded(), Unit: unit}
}

// gauges flattens metrics into a name->value map.
func gauges(ms ...*simulate.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name] = m.Value
	}
	return out
}

func step(r *rand.Rand, ms ...*simulate.Metric) {
	for _, m := range ms {
		m.Step(r)
	}
}

func clock(now time.Time) string {
	return now.Format("15:04:05")
}
