package board

import (
	"github.com/mbd888/guardlens/internal/monitor"
	"github.com/mbd888/guardlens/internal/panels"
)

// Page is one dashboard page and the panels it mounts.
type Page struct {
	Slug      string
	Path      string
	Title     string
	Factories []panels.Factory
}

// PageInfo describes a catalog page for listings.
type PageInfo struct {
	Slug    string   `json:"slug"`
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Panels  []string `json:"panels"`
	Mounted bool     `json:"mounted"`
}

// DashboardSlug is the page that carries the monitoring session.
const DashboardSlug = "dashboard"

func factory[P panels.Panel](fn func() P) panels.Factory {
	return func() panels.Panel { return fn() }
}

// defaultCatalog lists the six dashboard pages. The dashboard factory closes
// over the board so every mount gets a session wired to its recorder.
func (b *Board) defaultCatalog() []Page {
	return []Page{
		{
			Slug:  DashboardSlug,
			Path:  "/",
			Title: "Security Dashboard",
			Factories: []panels.Factory{func() panels.Panel {
				return monitor.New(
					monitor.WithRecorder(b.recorder),
					monitor.WithLogger(b.logger.With("panel", monitor.PanelID)),
					monitor.WithClock(b.now),
				)
			}},
		},
		{
			Slug:  "agents",
			Path:  "/agents",
			Title: "AI Agents",
			Factories: []panels.Factory{
				factory(panels.NewTypingDynamics),
				factory(panels.NewTouchPatterns),
				factory(panels.NewAppUsage),
				factory(panels.NewMovementAnalysis),
				factory(panels.NewBehavioralFusion),
			},
		},
		{
			Slug:  "detection",
			Path:  "/detection",
			Title: "Fraud Detection",
			Factories: []panels.Factory{
				factory(panels.NewRealTimeDetector),
				factory(panels.NewModelPerformance),
				factory(panels.NewAnomalyThreshold),
			},
		},
		{
			Slug:  "analytics",
			Path:  "/analytics",
			Title: "Analytics & Reports",
			Factories: []panels.Factory{
				factory(panels.NewFraudAnalytics),
				factory(panels.NewSystemPerformance),
				factory(panels.NewReporting),
			},
		},
		{
			Slug:  "privacy",
			Path:  "/privacy",
			Title: "Privacy & Security",
			Factories: []panels.Factory{
				factory(panels.NewPrivacyDashboard),
				factory(panels.NewSecurityMonitor),
				factory(panels.NewFederatedLearning),
			},
		},
		{
			Slug:  "models",
			Path:  "/models",
			Title: "ML Models",
			Factories: []panels.Factory{
				factory(panels.NewModelTraining),
			},
		},
	}
}
