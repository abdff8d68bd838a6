package panels

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/idgen"
	"github.com/mbd888/guardlens/internal/simulate"
)

// --- real-time detector ---

type EventKind string

const (
	EventNormal  EventKind = "normal"
	EventAnomaly EventKind = "anomaly"
	EventFraud   EventKind = "fraud"
)

// Normal events are three times as likely as either alert kind.
var eventKinds = []EventKind{EventNormal, EventNormal, EventNormal, EventAnomaly, EventFraud}

var eventSources = []string{"Typing Agent", "Touch Agent", "Usage Agent", "Movement Agent", "Fusion Agent"}

var eventDescriptions = map[EventKind][]string{
	EventNormal:  {"Normal behavior pattern", "Expected user activity", "Baseline interaction"},
	EventAnomaly: {"Unusual pattern detected", "Behavioral deviation", "Irregular activity"},
	EventFraud:   {"Potential fraud attempt", "High-risk behavior", "Suspicious activity"},
}

type DetectionEvent struct {
	ID          string    `json:"id"`
	Timestamp   string    `json:"timestamp"`
	Type        EventKind `json:"type"`
	Confidence  int       `json:"confidence"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	RiskScore   int       `json:"riskScore"`
}

func newDetectionEvent(r *rand.Rand, now time.Time) DetectionEvent {
	kind := simulate.Pick(r, eventKinds)
	var confBase, riskBase, riskSpan int
	switch kind {
	case EventFraud:
		confBase, riskBase, riskSpan = 70, 70, 30
	case EventAnomaly:
		confBase, riskBase, riskSpan = 60, 30, 40
	default:
		confBase, riskBase, riskSpan = 80, 5, 20
	}
	return DetectionEvent{
		ID:          idgen.WithPrefix(idgen.PrefixEvent),
		Timestamp:   clock(now),
		Type:        kind,
		Confidence:  min(99, simulate.IntIn(r, confBase, 30)),
		Source:      simulate.Pick(r, eventSources),
		Description: simulate.Pick(r, eventDescriptions[kind]),
		RiskScore:   simulate.IntIn(r, riskBase, riskSpan),
	}
}

// RealTimeDetector is the streaming detection engine feed.
type RealTimeDetector struct {
	mu         sync.RWMutex
	processing bool
	speed      int
	latency    int
	events     []DetectionEvent
	updatedAt  time.Time
}

func NewRealTimeDetector() *RealTimeDetector {
	return &RealTimeDetector{
		processing: true,
		speed:      847,
		latency:    12,
		events: []DetectionEvent{
			{ID: "1", Timestamp: "14:32:15", Type: EventNormal, Confidence: 94, Source: "Typing Agent", Description: "Normal keystroke pattern", RiskScore: 5},
			{ID: "2", Timestamp: "14:32:12", Type: EventAnomaly, Confidence: 78, Source: "Touch Agent", Description: "Unusual swipe velocity", RiskScore: 35},
			{ID: "3", Timestamp: "14:32:08", Type: EventFraud, Confidence: 92, Source: "Fusion Agent", Description: "Potential account takeover", RiskScore: 87},
		},
	}
}

func (p *RealTimeDetector) ID() string { return "real-time-detector" }

func (p *RealTimeDetector) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "stream", Every: 2 * time.Second, Run: p.tick}}
}

func (p *RealTimeDetector) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = simulate.IntIn(r, 750, 200)
	p.latency = simulate.IntIn(r, 8, 8)
	p.processing = simulate.Roll(r, 0.3)
	if simulate.Roll(r, 0.7) {
		p.events = prepend(p.events, newDetectionEvent(r, now), 5)
	}
	p.updatedAt = now
}

type DetectorSnapshot struct {
	Processing      bool             `json:"processing"`
	ProcessingSpeed int              `json:"processingSpeed"`
	LatencyMs       int              `json:"latencyMs"`
	RecentEvents    []DetectionEvent `json:"recentEvents"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (p *RealTimeDetector) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return DetectorSnapshot{
		Processing:      p.processing,
		ProcessingSpeed: p.speed,
		LatencyMs:       p.latency,
		RecentEvents:    append([]DetectionEvent(nil), p.events...),
		UpdatedAt:       p.updatedAt,
	}
}

func (p *RealTimeDetector) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return map[string]float64{
		"processingSpeed": float64(p.speed),
		"latencyMs":       float64(p.latency),
	}
}

// --- model performance ---

type ModelMetrics struct {
	Name      string  `json:"name"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1Score"`
	Status    string  `json:"status"`
}

type modelState struct {
	name                            string
	accuracy, precision, recall, f1 simulate.Metric
	status                          string
}

type ChartPoint struct {
	Time     string `json:"time"`
	Accuracy int    `json:"accuracy"`
	Latency  int    `json:"latency"`
}

// ModelPerformance tracks the five detection models and a rolling chart.
type ModelPerformance struct {
	mu        sync.RWMutex
	models    []modelState
	chart     []ChartPoint
	updatedAt time.Time
}

func NewModelPerformance() *ModelPerformance {
	model := func(name string, acc, prec, rec, f1 float64, status string) modelState {
		return modelState{
			name:      name,
			accuracy:  simulate.NewMetric("accuracy", acc, 85, 98, 2),
			precision: simulate.NewMetric("precision", prec, 85, 98, 2),
			recall:    simulate.NewMetric("recall", rec, 85, 98, 2),
			f1:        simulate.NewMetric("f1Score", f1, 85, 98, 2),
			status:    status,
		}
	}
	return &ModelPerformance{
		models: []modelState{
			model("Typing Classifier", 94.2, 92.8, 95.1, 93.9, StatusActive),
			model("Touch Analyzer", 87.5, 89.2, 85.7, 87.4, StatusActive),
			model("Usage Predictor", 91.3, 90.1, 92.6, 91.3, StatusUpdating),
			model("Movement Detector", 89.7, 88.4, 91.2, 89.8, StatusActive),
			model("Fusion Network", 96.1, 95.8, 96.4, 96.1, StatusTraining),
		},
		chart: []ChartPoint{
			{"14:25", 94, 15}, {"14:26", 95, 12}, {"14:27", 93, 18}, {"14:28", 96, 11},
			{"14:29", 94, 14}, {"14:30", 97, 9}, {"14:31", 95, 13}, {"14:32", 96, 10},
		},
	}
}

func (p *ModelPerformance) ID() string { return "model-performance" }

func (p *ModelPerformance) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "models", Every: 3 * time.Second, Run: p.tick}}
}

func (p *ModelPerformance) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.models {
		m := &p.models[i]
		step(r, &m.accuracy, &m.precision, &m.recall, &m.f1)
		m.status = StatusActive
		if simulate.Roll(r, 0.9) {
			m.status = StatusUpdating
			if simulate.Roll(r, 0.5) {
				m.status = StatusTraining
			}
		}
	}
	point := ChartPoint{
		Time:     now.Format("15:04"),
		Accuracy: simulate.IntIn(r, 92, 8),
		Latency:  simulate.IntIn(r, 8, 10),
	}
	p.chart = append(p.chart[1:], point)
	p.updatedAt = now
}

type ModelPerformanceSnapshot struct {
	Models    []ModelMetrics `json:"models"`
	Chart     []ChartPoint   `json:"chart"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (p *ModelPerformance) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	models := make([]ModelMetrics, len(p.models))
	for i, m := range p.models {
		models[i] = ModelMetrics{
			Name:      m.name,
			Accuracy:  m.accuracy.Rounded(),
			Precision: m.precision.Rounded(),
			Recall:    m.recall.Rounded(),
			F1Score:   m.f1.Rounded(),
			Status:    m.status,
		}
	}
	return ModelPerformanceSnapshot{
		Models:    models,
		Chart:     append([]ChartPoint(nil), p.chart...),
		UpdatedAt: p.updatedAt,
	}
}

func (p *ModelPerformance) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.models))
	for _, m := range p.models {
		out[m.name+" accuracy"] = m.accuracy.Value
	}
	return out
}

// --- anomaly thresholds ---

type Threshold struct {
	Name           string  `json:"name"`
	Current        float64 `json:"current"`
	Recommended    float64 `json:"recommended"`
	Sensitivity    string  `json:"sensitivity"`
	Detections     int     `json:"detections"`
	FalsePositives int     `json:"falsePositives"`
}

type thresholdState struct {
	name           string
	current        float64
	recommended    simulate.Metric
	detections     int
	falsePositives int
}

// Sensitivity maps a threshold to its sensitivity label.
func Sensitivity(v float64) string {
	switch {
	case v < 60:
		return "high"
	case v < 80:
		return "medium"
	default:
		return "low"
	}
}

// AnomalyThreshold holds the per-signal thresholds. Recommendations only move
// while adaptive mode is on.
type AnomalyThreshold struct {
	mu          sync.RWMutex
	thresholds  []thresholdState
	sensitivity int
	adaptive    bool
	updatedAt   time.Time
}

func NewAnomalyThreshold() *AnomalyThreshold {
	th := func(name string, current, recommended float64, detections, fps int) thresholdState {
		return thresholdState{
			name:           name,
			current:        current,
			recommended:    simulate.NewMetric(name, recommended, 50, 95, 4),
			detections:     detections,
			falsePositives: fps,
		}
	}
	return &AnomalyThreshold{
		thresholds: []thresholdState{
			th("Typing Anomaly", 75, 78, 12, 2),
			th("Touch Deviation", 65, 70, 8, 1),
			th("Usage Pattern", 80, 82, 5, 0),
			th("Movement Alert", 70, 68, 15, 3),
			th("Fusion Score", 85, 87, 3, 0),
		},
		sensitivity: 75,
		adaptive:    true,
	}
}

func (p *AnomalyThreshold) ID() string { return "anomaly-threshold" }

func (p *AnomalyThreshold) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "adapt", Every: 4 * time.Second, Run: p.tick}}
}

func (p *AnomalyThreshold) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.adaptive {
		return
	}
	for i := range p.thresholds {
		t := &p.thresholds[i]
		t.recommended.Step(r)
		if simulate.Roll(r, 0.7) {
			t.detections++
		}
		if simulate.Roll(r, 0.9) {
			t.falsePositives++
		}
	}
	p.updatedAt = now
}

// SetThreshold sets the current threshold of the named signal.
func (p *AnomalyThreshold) SetThreshold(name string, value float64) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%w: threshold %g not in [0, 100]", ErrInvalidValue, value)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.thresholds {
		if p.thresholds[i].name == name {
			p.thresholds[i].current = value
			return nil
		}
	}
	return fmt.Errorf("%w: threshold %q", ErrUnknownControl, name)
}

func (p *AnomalyThreshold) SetAdaptive(on bool) {
	p.mu.Lock()
	p.adaptive = on
	p.mu.Unlock()
}

func (p *AnomalyThreshold) SetGlobalSensitivity(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: sensitivity %d not in [0, 100]", ErrInvalidValue, v)
	}
	p.mu.Lock()
	p.sensitivity = v
	p.mu.Unlock()
	return nil
}

type ThresholdSnapshot struct {
	Thresholds        []Threshold `json:"thresholds"`
	GlobalSensitivity int         `json:"globalSensitivity"`
	Adaptive          bool        `json:"adaptive"`
	Mode              string      `json:"mode"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func (p *AnomalyThreshold) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Threshold, len(p.thresholds))
	for i, t := range p.thresholds {
		out[i] = Threshold{
			Name:           t.name,
			Current:        t.current,
			Recommended:    t.recommended.Rounded(),
			Sensitivity:    Sensitivity(t.current),
			Detections:     t.detections,
			FalsePositives: t.falsePositives,
		}
	}
	mode := "Manual"
	if p.adaptive {
		mode = "Adaptive"
	}
	return ThresholdSnapshot{
		Thresholds:        out,
		GlobalSensitivity: p.sensitivity,
		Adaptive:          p.adaptive,
		Mode:              mode,
		UpdatedAt:         p.updatedAt,
	}
}

func (p *AnomalyThreshold) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.thresholds)+1)
	for _, t := range p.thresholds {
		out[t.name+" recommended"] = t.recommended.Value
	}
	out["globalSensitivity"] = float64(p.sensitivity)
	return out
}
