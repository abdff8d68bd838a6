package panels

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/idgen"
	"github.com/mbd888/guardlens/internal/simulate"
)

// --- privacy dashboard ---

type PrivacyPrinciple struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
	Compliance  float64 `json:"compliance"`
}

type principle struct {
	description string
	compliance  simulate.Metric
}

// PrivacyDashboard reports privacy principle compliance and the user's data
// controls.
type PrivacyDashboard struct {
	mu         sync.RWMutex
	principles []principle
	controls   map[string]bool
	encryption map[string]float64
	updatedAt  time.Time
}

func NewPrivacyDashboard() *PrivacyDashboard {
	pr := func(name, desc string, compliance float64) principle {
		return principle{description: desc, compliance: simulate.NewMetric(name, compliance, 90, 100, 2)}
	}
	return &PrivacyDashboard{
		principles: []principle{
			pr("Data Minimization", "Only essential behavioral data collected", 100),
			pr("Purpose Limitation", "Data used only for fraud detection", 100),
			pr("Storage Limitation", "Data retained for minimum required time", 95),
			pr("Accuracy Principle", "Continuous model accuracy validation", 98),
			pr("Security Measures", "End-to-end encryption and secure processing", 100),
			pr("Transparency", "Clear data processing explanations", 92),
		},
		controls: map[string]bool{
			"dataCollection":     true,
			"modelTraining":      true,
			"anomalyLogging":     true,
			"performanceMetrics": true,
			"federatedLearning":  false,
		},
		encryption: map[string]float64{
			"dataAtRest":            100,
			"dataInTransit":         100,
			"modelParameters":       100,
			"communicationChannels": 100,
		},
	}
}

func (p *PrivacyDashboard) ID() string { return "privacy-dashboard" }

func (p *PrivacyDashboard) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "compliance", Every: 5 * time.Second, Run: p.tick}}
}

func (p *PrivacyDashboard) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.principles {
		p.principles[i].compliance.Step(r)
	}
	p.updatedAt = now
}

// ToggleControl flips a named data control and returns its new state.
func (p *PrivacyDashboard) ToggleControl(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.controls[name]
	if !ok {
		return false, fmt.Errorf("%w: data control %q", ErrUnknownControl, name)
	}
	p.controls[name] = !v
	return !v, nil
}

type PrivacySnapshot struct {
	Principles        []PrivacyPrinciple `json:"principles"`
	OverallCompliance float64            `json:"overallCompliance"`
	DataControls      map[string]bool    `json:"dataControls"`
	Encryption        map[string]float64 `json:"encryption"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (p *PrivacyDashboard) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PrivacyPrinciple, len(p.principles))
	var sum float64
	for i, pr := range p.principles {
		out[i] = PrivacyPrinciple{
			Name:        pr.compliance.Name,
			Status:      StatusActive,
			Description: pr.description,
			Compliance:  pr.compliance.Rounded(),
		}
		sum += pr.compliance.Value
	}
	controls := make(map[string]bool, len(p.controls))
	for k, v := range p.controls {
		controls[k] = v
	}
	enc := make(map[string]float64, len(p.encryption))
	for k, v := range p.encryption {
		enc[k] = v
	}
	return PrivacySnapshot{
		Principles:        out,
		OverallCompliance: simulate.Round(sum/float64(len(p.principles)), 1),
		DataControls:      controls,
		Encryption:        enc,
		UpdatedAt:         p.updatedAt,
	}
}

func (p *PrivacyDashboard) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.principles))
	for _, pr := range p.principles {
		out[pr.compliance.Name] = pr.compliance.Value
	}
	return out
}

// --- security monitor ---

type SecurityEvent struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

var (
	securityEventTypes = []string{"system", "access", "threat", "vulnerability"}
	// low is drawn twice as often as medium or high
	securitySeverities   = []string{"low", "low", "medium", "high"}
	securityDescriptions = map[string][]string{
		"system":        {"Security scan completed", "System update applied", "Backup completed"},
		"access":        {"Unusual access pattern", "Failed authentication attempt", "New device detected"},
		"threat":        {"Suspicious activity blocked", "Malware attempt prevented", "Model attack detected"},
		"vulnerability": {"Security patch available", "Configuration issue found", "Weak encryption detected"},
	}
)

// ThreatLevel labels a security score.
func ThreatLevel(score float64) string {
	switch {
	case score > 95:
		return "Low"
	case score > 85:
		return "Medium"
	default:
		return "High"
	}
}

// SecurityMonitor tracks the security posture of the detection stack.
type SecurityMonitor struct {
	mu            sync.RWMutex
	score         simulate.Metric
	threatLevel   string
	activeThreats int
	events        []SecurityEvent
	metrics       []simulate.Metric
	updatedAt     time.Time
}

func NewSecurityMonitor() *SecurityMonitor {
	return &SecurityMonitor{
		score:       simulate.NewMetric("securityScore", 94, 85, 100, 3),
		threatLevel: "Low",
		events: []SecurityEvent{
			{ID: "1", Timestamp: "14:30:15", Type: "system", Severity: "low", Description: "Routine security scan completed", Status: "resolved"},
			{ID: "2", Timestamp: "14:25:32", Type: "access", Severity: "medium", Description: "Unusual access pattern detected", Status: "investigating"},
			{ID: "3", Timestamp: "14:20:08", Type: "threat", Severity: "high", Description: "Potential model poisoning attempt blocked", Status: "resolved"},
		},
		metrics: []simulate.Metric{
			simulate.NewMetric("firewall", 100, 95, 100, 2),
			simulate.NewMetric("intrusion", 98, 90, 100, 3),
			simulate.NewMetric("malware", 100, 95, 100, 2),
			simulate.NewMetric("dataLeak", 96, 90, 100, 4),
			simulate.NewMetric("modelSecurity", 99, 95, 100, 2),
			simulate.NewMetric("networkSecurity", 97, 90, 100, 3),
		},
	}
}

func (p *SecurityMonitor) ID() string { return "security-monitor" }

func (p *SecurityMonitor) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "posture", Every: 4 * time.Second, Run: p.tick}}
}

func (p *SecurityMonitor) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The level label lags the score by one tick.
	p.threatLevel = ThreatLevel(p.score.Value)
	p.score.Step(r)

	delta := -1
	if simulate.Roll(r, 0.8) {
		delta = 1
	}
	p.activeThreats = min(5, max(0, p.activeThreats+delta))

	if simulate.Roll(r, 0.8) {
		kind := simulate.Pick(r, securityEventTypes)
		status := "investigating"
		if simulate.Roll(r, 0.7) {
			status = "resolved"
		}
		ev := SecurityEvent{
			ID:          idgen.WithPrefix(idgen.PrefixEvent),
			Timestamp:   clock(now),
			Type:        kind,
			Severity:    simulate.Pick(r, securitySeverities),
			Description: simulate.Pick(r, securityDescriptions[kind]),
			Status:      status,
		}
		p.events = prepend(p.events, ev, 5)
	}

	for i := range p.metrics {
		p.metrics[i].Step(r)
	}
	p.updatedAt = now
}

type SecuritySnapshot struct {
	SecurityScore float64            `json:"securityScore"`
	ThreatLevel   string             `json:"threatLevel"`
	ActiveThreats int                `json:"activeThreats"`
	Events        []SecurityEvent    `json:"events"`
	Metrics       map[string]float64 `json:"metrics"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func (p *SecurityMonitor) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	metrics := make(map[string]float64, len(p.metrics))
	for _, m := range p.metrics {
		metrics[m.Name] = m.Rounded()
	}
	return SecuritySnapshot{
		SecurityScore: p.score.Rounded(),
		ThreatLevel:   p.threatLevel,
		ActiveThreats: p.activeThreats,
		Events:        append([]SecurityEvent(nil), p.events...),
		Metrics:       metrics,
		UpdatedAt:     p.updatedAt,
	}
}

func (p *SecurityMonitor) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.metrics)+2)
	for _, m := range p.metrics {
		out[m.Name] = m.Value
	}
	out[p.score.Name] = p.score.Value
	out["activeThreats"] = float64(p.activeThreats)
	return out
}

// --- federated learning ---

type FederatedNode struct {
	ID               string  `json:"id"`
	Region           string  `json:"region"`
	Participants     int     `json:"participants"`
	ModelAccuracy    float64 `json:"modelAccuracy"`
	DataContribution float64 `json:"dataContribution"`
	Status           string  `json:"status"`
}

type federatedNode struct {
	id           string
	participants int
	accuracy     simulate.Metric
	contribution simulate.Metric
	status       string
}

// FederatedLearning simulates privacy-preserving training across regions.
// Nothing moves while it is disabled.
type FederatedLearning struct {
	mu           sync.RWMutex
	enabled      bool
	accuracy     simulate.Metric
	participants int
	syncProgress int
	nodes        []federatedNode
	modelUpdates int
	learning     []simulate.Metric
	updatedAt    time.Time
}

func NewFederatedLearning() *FederatedLearning {
	node := func(id, region string, participants int, acc, contribution float64, status string) federatedNode {
		return federatedNode{
			id:           id,
			participants: participants,
			accuracy:     simulate.NewMetric(region, acc, 94, 99, 0.8),
			contribution: simulate.NewMetric(region, contribution, 1, 50, 3),
			status:       status,
		}
	}
	return &FederatedLearning{
		enabled:      true,
		accuracy:     simulate.NewMetric("globalModelAccuracy", 97.2, 95, 99, 0.5),
		participants: 1247,
		syncProgress: 78,
		nodes: []federatedNode{
			node("1", "North America", 423, 96.8, 34, StatusActive),
			node("2", "Europe", 387, 97.1, 31, "syncing"),
			node("3", "Asia Pacific", 298, 97.5, 24, StatusActive),
			node("4", "South America", 89, 96.2, 7, StatusActive),
			node("5", "Africa", 50, 95.9, 4, "offline"),
		},
		modelUpdates: 156,
		learning: []simulate.Metric{
			simulate.NewMetric("privacyBudget", 85, 70, 100, 5),
			simulate.NewMetric("convergenceRate", 92, 80, 100, 4),
			simulate.NewMetric("communicationEfficiency", 88, 75, 100, 6),
		},
	}
}

func (p *FederatedLearning) ID() string { return "federated-learning" }

func (p *FederatedLearning) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "rounds", Every: 3 * time.Second, Run: p.tick}}
}

func (p *FederatedLearning) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.accuracy.Step(r)
	p.participants = simulate.Nudge(r, p.participants, 20, 1000)
	if p.syncProgress >= 100 {
		p.syncProgress = 0
	} else {
		p.syncProgress += simulate.IntIn(r, 5, 15)
	}

	for i := range p.nodes {
		n := &p.nodes[i]
		n.participants = simulate.Nudge(r, n.participants, 10, 20)
		n.accuracy.Step(r)
		n.contribution.Step(r)
		n.status = StatusActive
		if simulate.Roll(r, 0.9) {
			n.status = "offline"
			if simulate.Roll(r, 0.5) {
				n.status = "syncing"
			}
		}
	}

	if simulate.Roll(r, 0.7) {
		p.modelUpdates++
	}
	step(r, &p.learning[0], &p.learning[1], &p.learning[2])
	p.updatedAt = now
}

func (p *FederatedLearning) SetEnabled(on bool) {
	p.mu.Lock()
	p.enabled = on
	p.mu.Unlock()
}

type FederatedSnapshot struct {
	Enabled             bool               `json:"enabled"`
	Status              string             `json:"status"`
	GlobalModelAccuracy float64            `json:"globalModelAccuracy"`
	TotalParticipants   int                `json:"totalParticipants"`
	SyncProgress        int                `json:"syncProgress"`
	Nodes               []FederatedNode    `json:"nodes"`
	ModelUpdates        int                `json:"modelUpdates"`
	Learning            map[string]float64 `json:"learning"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

func (p *FederatedLearning) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	nodes := make([]FederatedNode, len(p.nodes))
	for i, n := range p.nodes {
		nodes[i] = FederatedNode{
			ID:               n.id,
			Region:           n.accuracy.Name,
			Participants:     n.participants,
			ModelAccuracy:    n.accuracy.Rounded(),
			DataContribution: n.contribution.Rounded(),
			Status:           n.status,
		}
	}
	learning := make(map[string]float64, len(p.learning))
	for _, m := range p.learning {
		learning[m.Name] = m.Rounded()
	}
	status := "Disabled"
	if p.enabled {
		status = "Enabled"
	}
	return FederatedSnapshot{
		Enabled:             p.enabled,
		Status:              status,
		GlobalModelAccuracy: p.accuracy.Rounded(),
		TotalParticipants:   p.participants,
		SyncProgress:        min(p.syncProgress, 100),
		Nodes:               nodes,
		ModelUpdates:        p.modelUpdates,
		Learning:            learning,
		UpdatedAt:           p.updatedAt,
	}
}

func (p *FederatedLearning) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := map[string]float64{
		p.accuracy.Name:     p.accuracy.Value,
		"totalParticipants": float64(p.participants),
		"syncProgress":      float64(p.syncProgress),
		"modelUpdates":      float64(p.modelUpdates),
	}
	for _, m := range p.learning {
		out[m.Name] = m.Value
	}
	return out
}
