package panels

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/simulate"
)

type trainingModel struct {
	name     string
	kind     string
	features []string
	progress float64
	accuracy float64
	// per-tick ceilings for the monotone progress and accuracy climbs
	progressStep float64
	accuracyStep float64
}

type Epoch struct {
	Epoch      int     `json:"epoch"`
	Loss       float64 `json:"loss"`
	Accuracy   float64 `json:"accuracy"`
	Validation float64 `json:"validation"`
}

type Adaptation struct {
	Time        string  `json:"time"`
	Baseline    float64 `json:"baseline"`
	Adapted     float64 `json:"adapted"`
	Improvement float64 `json:"improvement"`
}

// ModelTraining shows continuous learning of the five behavioral models.
// Progress and accuracy only climb while the training flag is set; the flag
// itself flips on a slower schedule.
type ModelTraining struct {
	mu         sync.RWMutex
	models     []trainingModel
	monitoring bool
	epochs     []Epoch
	adaptation []Adaptation
	toggledAt  time.Time
	updatedAt  time.Time
}

func NewModelTraining() *ModelTraining {
	return &ModelTraining{
		models: []trainingModel{
			{name: "Typing Dynamics Model", kind: "Neural Network", features: []string{"Keystroke timing", "Pressure patterns", "Rhythm analysis"}, progress: 87, accuracy: 96.2, progressStep: 0.5, accuracyStep: 0.1},
			{name: "Touch Pattern Model", kind: "CNN", features: []string{"Touch pressure", "Swipe velocity", "Gesture patterns"}, progress: 92, accuracy: 94.8, progressStep: 0.3, accuracyStep: 0.1},
			{name: "App Usage Model", kind: "LSTM", features: []string{"Usage patterns", "Navigation flow", "Session duration"}, progress: 78, accuracy: 91.5, progressStep: 0.7, accuracyStep: 0.15},
			{name: "Movement Model", kind: "RNN", features: []string{"Device orientation", "Motion patterns", "Gait analysis"}, progress: 85, accuracy: 93.7, progressStep: 0.4, accuracyStep: 0.1},
			{name: "Behavioral Fusion", kind: "Ensemble", features: []string{"Multi-modal fusion", "Risk scoring", "Anomaly detection"}, progress: 94, accuracy: 98.1, progressStep: 0.2, accuracyStep: 0.05},
		},
		epochs: []Epoch{
			{1, 0.45, 85.2, 83.1},
			{2, 0.32, 89.7, 87.3},
			{3, 0.28, 92.1, 90.8},
			{4, 0.24, 94.3, 93.2},
			{5, 0.21, 95.8, 94.9},
			{6, 0.19, 96.7, 95.8},
		},
		adaptation: []Adaptation{
			{"00:00", 85, 85, 0},
			{"04:00", 85, 87, 2.4},
			{"08:00", 85, 91, 7.1},
			{"12:00", 85, 94, 10.6},
			{"16:00", 85, 96, 12.9},
			{"20:00", 85, 98, 15.3},
		},
	}
}

func (p *ModelTraining) ID() string { return "model-training" }

func (p *ModelTraining) Schedules() []simulate.Schedule {
	return []simulate.Schedule{
		{Name: "train", Every: 3 * time.Second, Run: p.train},
		{Name: "toggle", Every: 10 * time.Second, Run: p.toggle},
	}
}

func (p *ModelTraining) train(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.monitoring {
		return
	}
	for i := range p.models {
		m := &p.models[i]
		m.progress = simulate.Rise(r, m.progress, 100, m.progressStep)
		m.accuracy = simulate.Rise(r, m.accuracy, 99.9, m.accuracyStep)
	}
	p.updatedAt = now
}

func (p *ModelTraining) toggle(_ *rand.Rand, now time.Time) {
	p.mu.Lock()
	p.monitoring = !p.monitoring
	p.toggledAt = now
	p.mu.Unlock()
}

type TrainingModel struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Progress float64  `json:"progress"`
	Accuracy float64  `json:"accuracy"`
	Status   string   `json:"status"`
	Features []string `json:"features"`
}

type TrainingSnapshot struct {
	Training    bool            `json:"training"`
	Models      []TrainingModel `json:"models"`
	AvgAccuracy float64         `json:"avgAccuracy"`
	Epochs      []Epoch         `json:"epochs"`
	Adaptation  []Adaptation    `json:"adaptation"`
	ToggledAt   time.Time       `json:"toggledAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *ModelTraining) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := "idle"
	if p.monitoring {
		status = StatusTraining
	}
	models := make([]TrainingModel, len(p.models))
	var sum float64
	for i, m := range p.models {
		models[i] = TrainingModel{
			Name:     m.name,
			Type:     m.kind,
			Progress: simulate.Round(m.progress, 1),
			Accuracy: simulate.Round(m.accuracy, 1),
			Status:   status,
			Features: m.features,
		}
		sum += m.accuracy
	}
	return TrainingSnapshot{
		Training:    p.monitoring,
		Models:      models,
		AvgAccuracy: simulate.Round(sum/float64(len(p.models)), 1),
		Epochs:      p.epochs,
		Adaptation:  p.adaptation,
		ToggledAt:   p.toggledAt,
		UpdatedAt:   p.updatedAt,
	}
}

func (p *ModelTraining) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, 2*len(p.models))
	for _, m := range p.models {
		out[m.name+" progress"] = m.progress
		out[m.name+" accuracy"] = m.accuracy
	}
	return out
}
