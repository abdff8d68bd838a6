// Package monitor implements the main dashboard monitoring session: the
// idle/scanning/complete toggle, its duration clock and the headline
// metrics that only move while monitoring is on.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/idgen"
	"github.com/mbd888/guardlens/internal/sessions"
	"github.com/mbd888/guardlens/internal/simulate"
)

// Status is the scan state shown on the dashboard.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusComplete Status = "complete"
)

const (
	initialThreat = 15
	// PanelID is the id the session carries when mounted on the dashboard.
	PanelID = "monitoring"
)

// Recorder receives a summary whenever a session closes.
type Recorder interface {
	Save(ctx context.Context, s *sessions.Summary) error
}

type Option func(*Session)

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides time.Now for transitions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// open tracks the session between Start and the transition that closes it.
type open struct {
	id         string
	startedAt  time.Time
	anomalies  int
	peakThreat float64
}

// Session is the monitoring toggle of the main dashboard.
type Session struct {
	mu         sync.RWMutex
	monitoring bool
	status     Status
	duration   int
	lastScan   *time.Time

	threat       simulate.Metric
	systemLoad   simulate.Metric
	speed        simulate.Metric
	accuracy     simulate.Metric
	anomalies    int
	activeAgents int
	current      *open

	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func New(opts ...Option) *Session {
	s := &Session{
		status:       StatusIdle,
		threat:       simulate.NewMetric("threatLevel", initialThreat, 0, 100, 8),
		systemLoad:   simulate.NewMetric("systemLoad", 67, 20, 90, 15),
		speed:        simulate.NewMetric("processingSpeed", 245, 180, 300, 20),
		accuracy:     simulate.NewMetric("accuracyRate", 98.7, 95, 99.9, 0.5),
		anomalies:    3,
		activeAgents: 5,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State is the toggle state returned by every transition.
type State struct {
	Monitoring bool       `json:"monitoring"`
	Status     Status     `json:"status"`
	Duration   int        `json:"duration"`
	LastScan   *time.Time `json:"lastScan,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
}

// Start turns monitoring on with a fresh duration. An open session that has
// not been stopped is closed as restarted.
func (s *Session) Start(ctx context.Context) State {
	s.mu.Lock()
	now := s.now()
	closed := s.closeLocked(now, sessions.OutcomeRestarted)
	s.monitoring = true
	s.status = StatusScanning
	s.lastScan = &now
	s.duration = 0
	s.current = &open{
		id:         idgen.Sortable(idgen.PrefixSession),
		startedAt:  now,
		anomalies:  s.anomalies,
		peakThreat: s.threat.Value,
	}
	st := s.stateLocked()
	s.mu.Unlock()

	s.record(ctx, closed)
	return st
}

// Pause turns monitoring off and keeps the duration.
func (s *Session) Pause(_ context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoring = false
	s.status = StatusIdle
	return s.stateLocked()
}

// Stop ends the session as complete and clears the duration.
func (s *Session) Stop(ctx context.Context) State {
	s.mu.Lock()
	closed := s.closeLocked(s.now(), sessions.OutcomeComplete)
	s.monitoring = false
	s.status = StatusComplete
	s.duration = 0
	st := s.stateLocked()
	s.mu.Unlock()

	s.record(ctx, closed)
	return st
}

// Reset returns the dashboard to its idle baseline.
func (s *Session) Reset(ctx context.Context) State {
	s.mu.Lock()
	closed := s.closeLocked(s.now(), sessions.OutcomeReset)
	s.monitoring = false
	s.status = StatusIdle
	s.duration = 0
	s.anomalies = 0
	s.threat.Value = initialThreat
	s.lastScan = nil
	st := s.stateLocked()
	s.mu.Unlock()

	s.record(ctx, closed)
	return st
}

// State returns the toggle state without the metrics.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	st := State{
		Monitoring: s.monitoring,
		Status:     s.status,
		Duration:   s.duration,
	}
	if s.lastScan != nil {
		t := *s.lastScan
		st.LastScan = &t
	}
	if s.current != nil {
		st.SessionID = s.current.id
	}
	return st
}

// closeLocked detaches the open session and builds its summary. The
// duration must still hold the session's final value.
func (s *Session) closeLocked(now time.Time, outcome sessions.Outcome) *sessions.Summary {
	if s.current == nil {
		return nil
	}
	o := s.current
	s.current = nil
	return &sessions.Summary{
		ID:              o.id,
		StartedAt:       o.startedAt,
		EndedAt:         now,
		DurationSeconds: s.duration,
		Outcome:         outcome,
		Anomalies:       max(0, s.anomalies-o.anomalies),
		PeakThreat:      simulate.Round(o.peakThreat, 1),
		FinalThreat:     s.threat.Rounded(),
		AccuracyRate:    s.accuracy.Rounded(),
	}
}

func (s *Session) record(ctx context.Context, sum *sessions.Summary) {
	if sum == nil || s.recorder == nil {
		return
	}
	if err := s.recorder.Save(ctx, sum); err != nil {
		s.logger.Warn("failed to record monitoring session",
			"session", sum.ID,
			"outcome", string(sum.Outcome),
			"error", err,
		)
	}
}

// --- panel behaviour ---

func (s *Session) ID() string { return PanelID }

func (s *Session) Schedules() []simulate.Schedule {
	return []simulate.Schedule{
		{Name: "clock", Every: time.Second, Run: s.clockTick},
		{Name: "metrics", Every: 2500 * time.Millisecond, Run: s.metricsTick},
	}
}

func (s *Session) clockTick(_ *rand.Rand, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitoring {
		s.duration++
	}
}

func (s *Session) metricsTick(r *rand.Rand, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.monitoring {
		return
	}
	s.threat.Step(r)
	if simulate.Roll(r, 0.85) {
		s.anomalies++
	}
	s.systemLoad.Step(r)
	s.speed.Step(r)
	s.accuracy.Step(r)
	if s.current != nil && s.threat.Value > s.current.peakThreat {
		s.current.peakThreat = s.threat.Value
	}
}

// AgentCard is one behavioral agent tile on the dashboard.
type AgentCard struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Change string  `json:"change"`
	Status string  `json:"status"`
}

var agentCards = []AgentCard{
	{Name: "Typing Dynamics", Score: 94, Change: "+2.3%"},
	{Name: "Touch Patterns", Score: 87, Change: "+1.8%"},
	{Name: "App Usage", Score: 91, Change: "+3.1%"},
	{Name: "Movement", Score: 89, Change: "+0.9%"},
	{Name: "Behavioral Fusion", Score: 96, Change: "+4.2%"},
}

type Resources struct {
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Network float64 `json:"network"`
	Storage float64 `json:"storage"`
}

type Snapshot struct {
	State
	DurationLabel   string      `json:"durationLabel"`
	ThreatLevel     float64     `json:"threatLevel"`
	ActiveAgents    int         `json:"activeAgents"`
	Anomalies       int         `json:"anomalies"`
	SystemLoad      float64     `json:"systemLoad"`
	ProcessingSpeed float64     `json:"processingSpeed"`
	AccuracyRate    float64     `json:"accuracyRate"`
	Agents          []AgentCard `json:"agents"`
	Resources       Resources   `json:"resources"`
}

func (s *Session) Snapshot() any {
	return s.View()
}

// View is Snapshot with its concrete type.
func (s *Session) View() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := "standby"
	if s.monitoring {
		status = "active"
	}
	agents := make([]AgentCard, len(agentCards))
	for i, a := range agentCards {
		a.Status = status
		agents[i] = a
	}
	return Snapshot{
		State:           s.stateLocked(),
		DurationLabel:   FormatDuration(s.duration),
		ThreatLevel:     s.threat.Rounded(),
		ActiveAgents:    s.activeAgents,
		Anomalies:       s.anomalies,
		SystemLoad:      s.systemLoad.Rounded(),
		ProcessingSpeed: s.speed.Rounded(),
		AccuracyRate:    s.accuracy.Rounded(),
		Agents:          agents,
		Resources: Resources{
			CPU:     s.systemLoad.Rounded(),
			Memory:  45,
			Network: 23,
			Storage: 12,
		},
	}
}

func (s *Session) Gauges() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	monitoring := 0.0
	if s.monitoring {
		monitoring = 1
	}
	return map[string]float64{
		s.threat.Name:     s.threat.Value,
		s.systemLoad.Name: s.systemLoad.Value,
		s.speed.Name:      s.speed.Value,
		s.accuracy.Name:   s.accuracy.Value,
		"anomalies":       float64(s.anomalies),
		"duration":        float64(s.duration),
		"monitoring":      monitoring,
	}
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
