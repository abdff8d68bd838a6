package panels

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/mbd888/guardlens/internal/simulate"
)

// --- fraud analytics ---

// TimeRanges are the windows the fraud analytics view accepts.
var TimeRanges = []string{"24h", "7d", "30d", "90d"}

type FraudTrend struct {
	Date           string  `json:"date"`
	Detections     int     `json:"detections"`
	FalsePositives int     `json:"falsePositives"`
	Accuracy       float64 `json:"accuracy"`
	Severity       int     `json:"severity"`
}

type ThreatCategory struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
}

type category struct {
	name  string
	count int
	color string
}

// FraudAnalytics aggregates detection trends, threat categories and
// headline performance numbers.
type FraudAnalytics struct {
	mu              sync.RWMutex
	timeRange       string
	trends          []FraudTrend
	categories      []category
	totalDetections int
	accuracy        simulate.Metric
	fpRate          simulate.Metric
	responseTime    simulate.Metric
	riskReduction   float64
	costSavings     float64
	updatedAt       time.Time
}

func NewFraudAnalytics() *FraudAnalytics {
	return &FraudAnalytics{
		timeRange: "7d",
		trends: []FraudTrend{
			{"2024-01-15", 23, 2, 91.3, 35},
			{"2024-01-16", 31, 1, 96.8, 42},
			{"2024-01-17", 18, 3, 83.3, 28},
			{"2024-01-18", 45, 2, 95.6, 67},
			{"2024-01-19", 27, 1, 96.3, 38},
			{"2024-01-20", 39, 4, 89.7, 55},
			{"2024-01-21", 33, 2, 93.9, 48},
		},
		categories: []category{
			{"Account Takeover", 45, "#8b5cf6"},
			{"Bot Activity", 38, "#ef4444"},
			{"Identity Theft", 29, "#f97316"},
			{"Payment Fraud", 18, "#eab308"},
			{"Social Engineering", 10, "#22c55e"},
		},
		totalDetections: 216,
		accuracy:        simulate.NewMetric("accuracyRate", 94.2, 90, 98, 2),
		fpRate:          simulate.NewMetric("falsePositiveRate", 2.1, 1, 5, 0.5),
		responseTime:    simulate.NewMetric("averageResponseTime", 12, 8, 20, 3),
		riskReduction:   87,
		costSavings:     2.4,
	}
}

func (p *FraudAnalytics) ID() string { return "fraud-analytics" }

func (p *FraudAnalytics) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "trends", Every: 5 * time.Second, Run: p.tick}}
}

func (p *FraudAnalytics) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	point := FraudTrend{
		Date:           now.Format(time.DateOnly),
		Detections:     simulate.IntIn(r, 15, 30),
		FalsePositives: simulate.IntIn(r, 0, 4),
		Accuracy:       float64(simulate.IntIn(r, 85, 15)),
		Severity:       simulate.IntIn(r, 20, 40),
	}
	p.trends = append(p.trends[1:], point)
	for i := range p.categories {
		p.categories[i].count = simulate.Nudge(r, p.categories[i].count, 6, 5)
	}
	if simulate.Roll(r, 0.7) {
		p.totalDetections++
	}
	step(r, &p.accuracy, &p.fpRate, &p.responseTime)
	p.updatedAt = now
}

// SetTimeRange selects the reporting window label.
func (p *FraudAnalytics) SetTimeRange(v string) error {
	if !slices.Contains(TimeRanges, v) {
		return fmt.Errorf("%w: time range %q", ErrInvalidValue, v)
	}
	p.mu.Lock()
	p.timeRange = v
	p.mu.Unlock()
	return nil
}

type FraudPerformance struct {
	TotalDetections     int     `json:"totalDetections"`
	AccuracyRate        float64 `json:"accuracyRate"`
	FalsePositiveRate   float64 `json:"falsePositiveRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	RiskReduction       float64 `json:"riskReduction"`
	CostSavings         float64 `json:"costSavings"`
}

type FraudSnapshot struct {
	TimeRange   string           `json:"timeRange"`
	Trends      []FraudTrend     `json:"trends"`
	Categories  []ThreatCategory `json:"categories"`
	Performance FraudPerformance `json:"performance"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (p *FraudAnalytics) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := 0
	for _, c := range p.categories {
		total += c.count
	}
	cats := make([]ThreatCategory, len(p.categories))
	for i, c := range p.categories {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(c.count) * 100 / float64(total)))
		}
		cats[i] = ThreatCategory{Name: c.name, Count: c.count, Percentage: pct, Color: c.color}
	}
	return FraudSnapshot{
		TimeRange:  p.timeRange,
		Trends:     append([]FraudTrend(nil), p.trends...),
		Categories: cats,
		Performance: FraudPerformance{
			TotalDetections:     p.totalDetections,
			AccuracyRate:        p.accuracy.Rounded(),
			FalsePositiveRate:   p.fpRate.Rounded(),
			AverageResponseTime: p.responseTime.Rounded(),
			RiskReduction:       p.riskReduction,
			CostSavings:         p.costSavings,
		},
		UpdatedAt: p.updatedAt,
	}
}

func (p *FraudAnalytics) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := gauges(&p.accuracy, &p.fpRate, &p.responseTime)
	out["totalDetections"] = float64(p.totalDetections)
	for _, c := range p.categories {
		out[c.name] = float64(c.count)
	}
	return out
}

// --- system performance ---

type SystemPoint struct {
	Timestamp  string  `json:"timestamp"`
	CPU        float64 `json:"cpu"`
	Memory     float64 `json:"memory"`
	Latency    float64 `json:"latency"`
	Throughput float64 `json:"throughput"`
}

type AgentLoad struct {
	Name     string  `json:"name"`
	CPU      float64 `json:"cpu"`
	Memory   float64 `json:"memory"`
	Accuracy float64 `json:"accuracy"`
	Status   string  `json:"status"`
}

type agentLoad struct {
	cpu, memory, accuracy simulate.Metric
	status                string
}

// LoadStatus grades an agent by its resource usage.
func LoadStatus(cpu, memory float64) string {
	switch {
	case cpu < 30 && memory < 50:
		return "optimal"
	case cpu < 40:
		return "good"
	default:
		return "warning"
	}
}

// SystemPerformance tracks host resources and per-agent load.
type SystemPerformance struct {
	mu        sync.RWMutex
	current   []simulate.Metric
	series    []SystemPoint
	agents    []agentLoad
	updatedAt time.Time
}

const (
	sysCPU = iota
	sysMemory
	sysDisk
	sysLatency
	sysThroughput
	sysUptime
)

func NewSystemPerformance() *SystemPerformance {
	agent := func(name string, cpu, mem, acc float64, status string) agentLoad {
		return agentLoad{
			cpu:      simulate.NewMetric(name, cpu, 10, 40, 6),
			memory:   simulate.NewMetric(name, mem, 20, 60, 8),
			accuracy: simulate.NewMetric(name, acc, 85, 98, 2),
			status:   status,
		}
	}
	return &SystemPerformance{
		current: []simulate.Metric{
			sysCPU:        simulate.NewMetric("cpuUsage", 29, 15, 80, 10),
			sysMemory:     simulate.NewMetric("memoryUsage", 51, 30, 90, 8),
			sysDisk:       simulate.NewMetric("diskUsage", 34, 20, 70, 5),
			sysLatency:    simulate.NewMetric("networkLatency", 12, 8, 25, 4),
			sysThroughput: simulate.NewMetric("throughput", 867, 700, 1000, 50),
			sysUptime:     simulate.NewMetric("uptime", 99.7, 99, 100, 0.1),
		},
		series: []SystemPoint{
			{"14:25", 23, 45, 12, 847},
			{"14:26", 28, 48, 15, 823},
			{"14:27", 31, 52, 11, 891},
			{"14:28", 26, 47, 13, 856},
			{"14:29", 34, 55, 16, 798},
			{"14:30", 29, 49, 10, 912},
			{"14:31", 25, 44, 14, 834},
			{"14:32", 32, 51, 12, 867},
		},
		agents: []agentLoad{
			agent("Typing Agent", 15, 28, 94.2, "optimal"),
			agent("Touch Agent", 18, 32, 87.5, "optimal"),
			agent("Usage Agent", 22, 35, 91.3, "good"),
			agent("Movement Agent", 16, 29, 89.7, "optimal"),
			agent("Fusion Agent", 25, 42, 96.1, "optimal"),
		},
	}
}

func (p *SystemPerformance) ID() string { return "system-performance" }

func (p *SystemPerformance) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "resources", Every: 3 * time.Second, Run: p.tick}}
}

func (p *SystemPerformance) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// The chart records the reading from before this tick.
	point := SystemPoint{
		Timestamp:  now.Format("15:04"),
		CPU:        p.current[sysCPU].Rounded(),
		Memory:     p.current[sysMemory].Rounded(),
		Latency:    p.current[sysLatency].Rounded(),
		Throughput: p.current[sysThroughput].Rounded(),
	}
	for i := range p.current {
		p.current[i].Step(r)
	}
	p.series = append(p.series[1:], point)
	for i := range p.agents {
		a := &p.agents[i]
		a.status = LoadStatus(a.cpu.Value, a.memory.Value)
		step(r, &a.cpu, &a.memory, &a.accuracy)
	}
	p.updatedAt = now
}

type SystemSnapshot struct {
	Current   map[string]float64 `json:"current"`
	Series    []SystemPoint      `json:"series"`
	Agents    []AgentLoad        `json:"agents"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (p *SystemPerformance) Snapshot() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	current := make(map[string]float64, len(p.current))
	for _, m := range p.current {
		current[m.Name] = m.Rounded()
	}
	agents := make([]AgentLoad, len(p.agents))
	for i, a := range p.agents {
		agents[i] = AgentLoad{
			Name:     a.cpu.Name,
			CPU:      a.cpu.Rounded(),
			Memory:   a.memory.Rounded(),
			Accuracy: a.accuracy.Rounded(),
			Status:   a.status,
		}
	}
	return SystemSnapshot{
		Current:   current,
		Series:    append([]SystemPoint(nil), p.series...),
		Agents:    agents,
		UpdatedAt: p.updatedAt,
	}
}

func (p *SystemPerformance) Gauges() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.current))
	for _, m := range p.current {
		out[m.Name] = m.Value
	}
	return out
}

// --- reporting ---

const (
	ReportReady      = "ready"
	ReportGenerating = "generating"
	ReportScheduled  = "scheduled"
)

type Report struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	LastGenerated string `json:"lastGenerated"`
	Size          string `json:"size"`
	Format        string `json:"format"`
}

type ReportMetric struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Change float64 `json:"change"`
	Trend  string  `json:"trend"`
}

// Trend labels a signed change.
func Trend(change float64) string {
	switch {
	case change > 0:
		return "up"
	case change < 0:
		return "down"
	default:
		return "stable"
	}
}

const reportStamp = "2006-01-02 15:04"

// Reporting lists generated reports. Generate kicks off a one-shot timer
// that Dispose cancels.
type Reporting struct {
	mu         sync.Mutex
	reports    []Report
	metrics    []ReportMetric
	period     string
	generating string
	timers     map[string]*time.Timer
	disposed   bool
	delay      time.Duration
	updatedAt  time.Time
}

func NewReporting() *Reporting {
	return &Reporting{
		reports: []Report{
			{"1", "Weekly Security Summary", "security", ReportReady, "2024-01-21 09:00", "2.4 MB", "PDF"},
			{"2", "Performance Analytics", "performance", ReportReady, "2024-01-21 08:30", "1.8 MB", "PDF"},
			{"3", "Compliance Report", "compliance", ReportGenerating, "2024-01-20 18:00", "3.2 MB", "PDF"},
			{"4", "Executive Dashboard", "executive", ReportReady, "2024-01-21 07:00", "1.2 MB", "PDF"},
			{"5", "Fraud Detection Data", "security", ReportScheduled, "2024-01-21 06:00", "5.1 MB", "CSV"},
		},
		metrics: []ReportMetric{
			{"Total Reports Generated", "1,247", 12, "up"},
			{"Average Generation Time", "2.3 min", -8, "down"},
			{"Report Accuracy", "99.7%", 0.2, "up"},
			{"Automated Reports", "89%", 5, "up"},
		},
		period: "weekly",
		timers: make(map[string]*time.Timer),
		delay:  3 * time.Second,
	}
}

func (p *Reporting) ID() string { return "reporting" }

func (p *Reporting) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "reports", Every: 4 * time.Second, Run: p.tick}}
}

func (p *Reporting) tick(r *rand.Rand, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.reports {
		rep := &p.reports[i]
		switch {
		case rep.Status == ReportGenerating && simulate.Roll(r, 0.7):
			rep.Status = ReportReady
			rep.LastGenerated = now.UTC().Format(reportStamp)
		case rep.Status == ReportScheduled && simulate.Roll(r, 0.8):
			rep.Status = ReportGenerating
		}
	}
	for i := range p.metrics {
		m := &p.metrics[i]
		// Trend reflects the change before this tick's drift.
		m.Trend = Trend(m.Change)
		m.Change += (r.Float64() - 0.5) * 2
	}
	p.updatedAt = now
}

// Generate marks the report as generating and flips it to ready after the
// generation delay.
func (p *Reporting) Generate(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownReport, id)
	}
	if _, busy := p.timers[id]; busy {
		return fmt.Errorf("%w: %q", ErrBusy, id)
	}
	p.reports[idx].Status = ReportGenerating
	p.generating = id
	p.timers[id] = time.AfterFunc(p.delay, func() { p.finish(id) })
	return nil
}

func (p *Reporting) finish(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	delete(p.timers, id)
	if p.generating == id {
		p.generating = ""
	}
	if idx := p.indexLocked(id); idx >= 0 {
		p.reports[idx].Status = ReportReady
		p.reports[idx].LastGenerated = time.Now().UTC().Format(reportStamp)
	}
}

// SetPeriod selects the reporting period label.
func (p *Reporting) SetPeriod(v string) error {
	switch v {
	case "daily", "weekly", "monthly", "quarterly":
	default:
		return fmt.Errorf("%w: period %q", ErrInvalidValue, v)
	}
	p.mu.Lock()
	p.period = v
	p.mu.Unlock()
	return nil
}

// Dispose cancels pending generation timers. A timer that already fired
// finds the panel disposed and does nothing.
func (p *Reporting) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposed = true
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
}

func (p *Reporting) indexLocked(id string) int {
	for i := range p.reports {
		if p.reports[i].ID == id {
			return i
		}
	}
	return -1
}

type ReportingSnapshot struct {
	Reports    []Report       `json:"reports"`
	Metrics    []ReportMetric `json:"metrics"`
	Period     string         `json:"period"`
	Generating string         `json:"generating,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (p *Reporting) Snapshot() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	metrics := append([]ReportMetric(nil), p.metrics...)
	for i := range metrics {
		metrics[i].Change = simulate.Round(metrics[i].Change, 1)
	}
	return ReportingSnapshot{
		Reports:    append([]Report(nil), p.reports...),
		Metrics:    metrics,
		Period:     p.period,
		Generating: p.generating,
		UpdatedAt:  p.updatedAt,
	}
}

func (p *Reporting) Gauges() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[string]float64{ReportReady: 0, ReportGenerating: 0, ReportScheduled: 0}
	for _, r := range p.reports {
		counts[r.Status]++
	}
	return map[string]float64{
		"reports ready":      counts[ReportReady],
		"reports generating": counts[ReportGenerating],
		"reports scheduled":  counts[ReportScheduled],
	}
}
