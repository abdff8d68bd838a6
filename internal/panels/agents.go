package panels

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/simulate"
)

// agentCore is the shape shared by the five behavioral agents: a handful of
// pattern readings plus one risk score that drives the verdict badge.
type agentCore struct {
	mu        sync.RWMutex
	readings  []simulate.Metric
	labels    []string
	units     []string
	score     simulate.Metric
	threshold float64
	alarm     string
	calm      string
	updatedAt time.Time
}

func (a *agentCore) stepLocked(r *rand.Rand, now time.Time) {
	for i := range a.readings {
		a.readings[i].Step(r)
	}
	a.score.Step(r)
	a.updatedAt = now
}

func (a *agentCore) verdictLocked() string {
	if a.score.Value > a.threshold {
		return a.alarm
	}
	return a.calm
}

func (a *agentCore) readingsLocked() []Reading {
	out := make([]Reading, len(a.readings))
	for i, m := range a.readings {
		out[i] = reading(a.labels[i], m, a.units[i])
	}
	return out
}

func (a *agentCore) gaugesLocked() map[string]float64 {
	out := make(map[string]float64, len(a.readings)+1)
	for _, m := range a.readings {
		out[m.Name] = m.Value
	}
	out[a.score.Name] = a.score.Value
	return out
}

// AgentSnapshot is the common part of every behavioral agent snapshot.
type AgentSnapshot struct {
	Readings  []Reading `json:"readings"`
	Score     float64   `json:"score"`
	ScoreName string    `json:"scoreName"`
	Verdict   string    `json:"verdict"`
	Alert     bool      `json:"alert"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *agentCore) snapshotLocked() AgentSnapshot {
	return AgentSnapshot{
		Readings:  a.readingsLocked(),
		Score:     a.score.Rounded(),
		ScoreName: a.score.Name,
		Verdict:   a.verdictLocked(),
		Alert:     a.score.Value > a.threshold,
		UpdatedAt: a.updatedAt,
	}
}

// --- typing dynamics ---

// TypingDynamics models keystroke timing and pressure.
type TypingDynamics struct {
	agentCore
	learning bool
}

func NewTypingDynamics() *TypingDynamics {
	return &TypingDynamics{agentCore: agentCore{
		readings: []simulate.Metric{
			simulate.NewMetric("avgSpeed", 85, 60, 120, 8),
			simulate.NewMetric("rhythm", 92, 70, 100, 6),
			simulate.NewMetric("pressure", 78, 60, 100, 10),
			simulate.NewMetric("dwellTime", 88, 70, 100, 7),
		},
		labels:    []string{"Typing Speed", "Rhythm Score", "Key Pressure", "Dwell Time"},
		units:     []string{"WPM", "%", "%", "%"},
		score:     simulate.NewMetric("anomalyScore", 5, 0, 100, 15),
		threshold: 30,
		alarm:     "Anomaly",
		calm:      "Normal",
	}}
}

func (p *TypingDynamics) ID() string { return "typing-dynamics" }

func (p *TypingDynamics) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "keystrokes", Every: 2 * time.Second, Run: p.tick}}
}

func (p *TypingDynamics) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(r, now)
	p.learning = simulate.Roll(r, 0.7)
}

type TypingSnapshot struct {
	AgentSnapshot
	Learning bool `json:"learning"`
}

func (p *TypingDynamics) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return TypingSnapshot{AgentSnapshot: p.snapshotLocked(), Learning: p.learning}
}

func (p *TypingDynamics) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gaugesLocked()
}

// --- touch patterns ---

var gestureKinds = []string{"swipe", "tap", "pinch", "scroll", "long-press"}

type Gesture struct {
	Type       string    `json:"type"`
	Confidence int       `json:"confidence"`
	At         time.Time `json:"at"`
}

// TouchPatterns models swipe, tap and gesture behavior.
type TouchPatterns struct {
	agentCore
	gestures []Gesture
}

func NewTouchPatterns() *TouchPatterns {
	now := time.Now()
	return &TouchPatterns{
		agentCore: agentCore{
			readings: []simulate.Metric{
				simulate.NewMetric("swipeVelocity", 76, 50, 100, 12),
				simulate.NewMetric("tapPressure", 82, 60, 100, 8),
				simulate.NewMetric("gestureAccuracy", 91, 80, 100, 5),
				simulate.NewMetric("touchArea", 68, 50, 90, 10),
			},
			labels:    []string{"Swipe Velocity", "Tap Pressure", "Gesture Accuracy", "Touch Area"},
			units:     []string{"%", "%", "%", "%"},
			score:     simulate.NewMetric("threatLevel", 12, 0, 100, 20),
			threshold: 25,
			alarm:     "Suspicious",
			calm:      "Verified",
		},
		gestures: []Gesture{
			{Type: "swipe", Confidence: 95, At: now},
			{Type: "tap", Confidence: 88, At: now.Add(-2 * time.Second)},
			{Type: "pinch", Confidence: 92, At: now.Add(-5 * time.Second)},
		},
	}
}

func (p *TouchPatterns) ID() string { return "touch-patterns" }

func (p *TouchPatterns) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "gestures", Every: 3 * time.Second, Run: p.tick}}
}

func (p *TouchPatterns) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(r, now)
	if simulate.Roll(r, 0.6) {
		g := Gesture{Type: simulate.Pick(r, gestureKinds), Confidence: simulate.IntIn(r, 80, 20), At: now}
		p.gestures = prepend(p.gestures, g, 3)
	}
}

type TouchSnapshot struct {
	AgentSnapshot
	RecentGestures []Gesture `json:"recentGestures"`
}

func (p *TouchPatterns) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return TouchSnapshot{
		AgentSnapshot:  p.snapshotLocked(),
		RecentGestures: append([]Gesture(nil), p.gestures...),
	}
}

func (p *TouchPatterns) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gaugesLocked()
}

// --- app usage ---

type AppUsage struct {
	Name  string  `json:"name"`
	Usage float64 `json:"usage"`
	Risk  string  `json:"risk"`
}

// AppUsagePanel tracks application usage and navigation behavior.
type AppUsagePanel struct {
	agentCore
	apps []appEntry
}

type appEntry struct {
	usage simulate.Metric
	risk  string
}

func NewAppUsage() *AppUsagePanel {
	app := func(name string, usage float64, risk string) appEntry {
		return appEntry{usage: simulate.NewMetric(name, usage, 10, 60, 8), risk: risk}
	}
	return &AppUsagePanel{
		agentCore: agentCore{
			readings: []simulate.Metric{
				simulate.NewMetric("sessionDuration", 78, 60, 100, 10),
				simulate.NewMetric("navigationPattern", 85, 70, 100, 8),
				simulate.NewMetric("featureUsage", 92, 80, 100, 6),
				simulate.NewMetric("timeDistribution", 67, 50, 90, 12),
			},
			labels:    []string{"Session Duration", "Navigation Pattern", "Feature Usage", "Time Distribution"},
			units:     []string{"%", "%", "%", "%"},
			score:     simulate.NewMetric("suspiciousActivity", 8, 0, 100, 25),
			threshold: 20,
			alarm:     "Irregular",
			calm:      "Normal",
		},
		apps: []appEntry{
			app("Banking", 45, "low"),
			app("Social", 32, "medium"),
			app("Email", 28, "low"),
			app("Shopping", 15, "high"),
		},
	}
}

func (p *AppUsagePanel) ID() string { return "app-usage" }

func (p *AppUsagePanel) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "usage", Every: 4 * time.Second, Run: p.tick}}
}

func (p *AppUsagePanel) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(r, now)
	for i := range p.apps {
		p.apps[i].usage.Step(r)
	}
}

type AppUsageSnapshot struct {
	AgentSnapshot
	TopApps []AppUsage `json:"topApps"`
}

func (p *AppUsagePanel) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	apps := make([]AppUsage, len(p.apps))
	for i, a := range p.apps {
		apps[i] = AppUsage{Name: a.usage.Name, Usage: a.usage.Rounded(), Risk: a.risk}
	}
	return AppUsageSnapshot{AgentSnapshot: p.snapshotLocked(), TopApps: apps}
}

func (p *AppUsagePanel) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gaugesLocked()
}

// --- movement analysis ---

var (
	environments = []string{"Indoor", "Outdoor", "Vehicle", "Transit"}
	activities   = []string{"Stationary", "Walking", "Running", "Sitting"}
)

type MovementContext struct {
	Environment string `json:"environment"`
	Activity    string `json:"activity"`
	Confidence  int    `json:"confidence"`
}

// MovementAnalysis models device movement and the inferred physical context.
type MovementAnalysis struct {
	agentCore
	context MovementContext
}

func NewMovementAnalysis() *MovementAnalysis {
	return &MovementAnalysis{
		agentCore: agentCore{
			readings: []simulate.Metric{
				simulate.NewMetric("walkingPattern", 89, 70, 100, 8),
				simulate.NewMetric("deviceOrientation", 76, 60, 100, 12),
				simulate.NewMetric("locationConsistency", 94, 80, 100, 6),
				simulate.NewMetric("motionStability", 82, 70, 100, 10),
			},
			labels:    []string{"Walking Pattern", "Device Orientation", "Location Consistency", "Motion Stability"},
			units:     []string{"%", "%", "%", "%"},
			score:     simulate.NewMetric("mobilityScore", 18, 0, 100, 30),
			threshold: 30,
			alarm:     "Anomalous",
			calm:      "Expected",
		},
		context: MovementContext{Environment: "Indoor", Activity: "Stationary", Confidence: 92},
	}
}

func (p *MovementAnalysis) ID() string { return "movement-analysis" }

func (p *MovementAnalysis) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "motion", Every: 3500 * time.Millisecond, Run: p.tick}}
}

func (p *MovementAnalysis) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(r, now)
	if simulate.Roll(r, 0.7) {
		p.context = MovementContext{
			Environment: simulate.Pick(r, environments),
			Activity:    simulate.Pick(r, activities),
			Confidence:  simulate.IntIn(r, 80, 20),
		}
	}
}

type MovementSnapshot struct {
	AgentSnapshot
	Context MovementContext `json:"context"`
}

func (p *MovementAnalysis) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return MovementSnapshot{AgentSnapshot: p.snapshotLocked(), Context: p.context}
}

func (p *MovementAnalysis) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gaugesLocked()
}

// --- behavioral fusion ---

type FusionInput struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

type fusionInput struct {
	weight simulate.Metric
	score  simulate.Metric
}

// BehavioralFusion combines the other agents into one risk assessment.
type BehavioralFusion struct {
	agentCore
	inputs []fusionInput
}

func NewBehavioralFusion() *BehavioralFusion {
	in := func(name string, weight, score float64) fusionInput {
		return fusionInput{
			weight: simulate.NewMetric(name, weight, 0.15, 0.35, 0.05),
			score:  simulate.NewMetric(name, score, 80, 100, 6),
		}
	}
	return &BehavioralFusion{
		agentCore: agentCore{
			readings: []simulate.Metric{
				simulate.NewMetric("overallConfidence", 96, 85, 100, 4),
				simulate.NewMetric("crossValidation", 89, 80, 100, 6),
				simulate.NewMetric("consensusScore", 94, 85, 100, 5),
				simulate.NewMetric("adaptationRate", 78, 70, 90, 8),
			},
			labels:    []string{"Overall Confidence", "Cross Validation", "Consensus Score", "Adaptation Rate"},
			units:     []string{"%", "%", "%", "%"},
			score:     simulate.NewMetric("riskAssessment", 7, 0, 100, 20),
			threshold: 25,
			alarm:     "High Risk",
			calm:      "Secure",
		},
		inputs: []fusionInput{
			in("Typing", 0.25, 94),
			in("Touch", 0.22, 87),
			in("Usage", 0.28, 91),
			in("Movement", 0.25, 89),
		},
	}
}

func (p *BehavioralFusion) ID() string { return "behavioral-fusion" }

func (p *BehavioralFusion) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "fusion", Every: 2500 * time.Millisecond, Run: p.tick}}
}

func (p *BehavioralFusion) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(r, now)
	for i := range p.inputs {
		p.inputs[i].score.Step(r)
		p.inputs[i].weight.Step(r)
	}
}

type FusionSnapshot struct {
	AgentSnapshot
	Inputs []FusionInput `json:"inputs"`
}

func (p *BehavioralFusion) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inputs := make([]FusionInput, len(p.inputs))
	for i, in := range p.inputs {
		inputs[i] = FusionInput{
			Name:   in.score.Name,
			Weight: simulate.Round(in.weight.Value, 2),
			Score:  in.score.Rounded(),
			Status: StatusActive,
		}
	}
	return FusionSnapshot{AgentSnapshot: p.snapshotLocked(), Inputs: inputs}
}

func (p *BehavioralFusion) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gaugesLocked()
}

// prepend puts v in front of s and keeps at most limit items.
func prepend[T any](s []T, v T, limit int) []T {
	keep := int(math.Min(float64(len(s)), float64(limit-1)))
	out := make([]T, 0, keep+1)
	out = append(out, v)
	return append(out, s[:keep]...)
}
