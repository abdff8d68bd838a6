package board

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/metrics"
	"github.com/mbd888/guardlens/internal/monitor"
	"github.com/mbd888/guardlens/internal/panels"
	"github.com/mbd888/guardlens/internal/sessions"
	"github.com/mbd888/guardlens/internal/simulate"
)

type fakePanel struct {
	id       string
	every    time.Duration
	boom     bool
	ticks    atomic.Int64
	disposed atomic.Bool
}

func (f *fakePanel) ID() string { return f.id }

func (f *fakePanel) Schedules() []simulate.Schedule {
	return []simulate.Schedule{{Name: "tick", Every: f.every, Run: f.run}}
}

func (f *fakePanel) run(_ *rand.Rand, _ time.Time) {
	f.ticks.Add(1)
	if f.boom {
		panic("boom")
	}
}

func (f *fakePanel) Snapshot() any { return map[string]int64{"ticks": f.ticks.Load()} }

func (f *fakePanel) Gauges() map[string]float64 {
	return map[string]float64{"ticks": float64(f.ticks.Load())}
}

func (f *fakePanel) Dispose() { f.disposed.Store(true) }

// fakePage returns a one-panel page and a pointer to the panel built by the
// most recent factory call.
func fakePage(slug string, every time.Duration, boom bool) (Page, *atomic.Pointer[fakePanel]) {
	var last atomic.Pointer[fakePanel]
	return Page{
		Slug:  slug,
		Path:  "/" + slug,
		Title: slug,
		Factories: []panels.Factory{func() panels.Panel {
			p := &fakePanel{id: slug + "-panel", every: every, boom: boom}
			last.Store(p)
			return p
		}},
	}, &last
}

type recEmitter struct {
	mu         sync.Mutex
	panels     map[string]int
	monitoring []any
	pages      []string
}

func newRecEmitter() *recEmitter {
	return &recEmitter{panels: make(map[string]int)}
}

func (e *recEmitter) PublishPanel(page, panel string, _ any) {
	e.mu.Lock()
	e.panels[page+"/"+panel]++
	e.mu.Unlock()
}

func (e *recEmitter) PublishMonitoring(state any) {
	e.mu.Lock()
	e.monitoring = append(e.monitoring, state)
	e.mu.Unlock()
}

func (e *recEmitter) PublishPage(page string, mounted bool) {
	e.mu.Lock()
	if mounted {
		e.pages = append(e.pages, "+"+page)
	} else {
		e.pages = append(e.pages, "-"+page)
	}
	e.mu.Unlock()
}

func (e *recEmitter) panelCount(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panels[key]
}

func TestBoard_DefaultCatalog(t *testing.T) {
	b := New()
	pages := b.Pages()
	require.Len(t, pages, 6)

	want := []struct {
		slug, path string
		panels     int
	}{
		{"dashboard", "/", 1},
		{"agents", "/agents", 5},
		{"detection", "/detection", 3},
		{"analytics", "/analytics", 3},
		{"privacy", "/privacy", 3},
		{"models", "/models", 1},
	}
	for i, w := range want {
		assert.Equal(t, w.slug, pages[i].Slug)
		assert.Equal(t, w.path, pages[i].Path)
		assert.Len(t, pages[i].Panels, w.panels, w.slug)
		assert.False(t, pages[i].Mounted)
	}
	assert.Equal(t, []string{monitor.PanelID}, pages[0].Panels)
}

func TestBoard_Errors(t *testing.T) {
	ctx := context.Background()
	page, _ := fakePage("errs", time.Hour, false)
	b := New(WithPages(page))

	assert.ErrorIs(t, b.Mount(ctx, "nope"), ErrPageNotFound)
	assert.ErrorIs(t, b.Unmount(ctx, "nope"), ErrPageNotFound)
	assert.ErrorIs(t, b.Unmount(ctx, "errs"), ErrNotMounted)

	_, err := b.Snapshot("errs")
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = b.Snapshot("nope")
	assert.ErrorIs(t, err, ErrPageNotFound)

	require.NoError(t, b.Mount(ctx, "errs"))
	defer b.UnmountAll(ctx)
	assert.ErrorIs(t, b.Mount(ctx, "errs"), ErrAlreadyMounted)
	assert.NoError(t, b.Ensure(ctx, "errs"))

	_, err = b.PanelSnapshot("errs", "missing")
	assert.ErrorIs(t, err, ErrPanelNotFound)

	_, err = b.Monitoring()
	assert.ErrorIs(t, err, ErrPageNotFound, "custom catalog has no dashboard")
}

func TestBoard_TicksPublishUntilUnmount(t *testing.T) {
	ctx := context.Background()
	em := newRecEmitter()
	page, last := fakePage("fast", 5*time.Millisecond, false)
	b := New(WithPages(page), WithEmitter(em))

	require.NoError(t, b.Mount(ctx, "fast"))
	p := last.Load()
	require.Eventually(t, func() bool { return em.panelCount("fast/fast-panel") >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Positive(t, testutil.ToFloat64(metrics.PanelValue.WithLabelValues("fast", "fast-panel", "ticks")))

	snap, err := b.Snapshot("fast")
	require.NoError(t, err)
	assert.Contains(t, snap.Panels, "fast-panel")

	require.NoError(t, b.Unmount(ctx, "fast"))
	ticks := p.ticks.Load()
	published := em.panelCount("fast/fast-panel")

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, ticks, p.ticks.Load(), "no tick after unmount")
	assert.Equal(t, published, em.panelCount("fast/fast-panel"), "no publish after unmount")
	assert.True(t, p.disposed.Load())
	assert.False(t, b.Mounted("fast"))
	assert.Equal(t, []string{"+fast", "-fast"}, em.pages)
}

func TestBoard_RemountStartsFresh(t *testing.T) {
	ctx := context.Background()
	page, last := fakePage("again", 5*time.Millisecond, false)
	b := New(WithPages(page))

	require.NoError(t, b.Mount(ctx, "again"))
	first := last.Load()
	require.Eventually(t, func() bool { return first.ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, b.Unmount(ctx, "again"))

	require.NoError(t, b.Mount(ctx, "again"))
	defer b.UnmountAll(ctx)
	second := last.Load()
	assert.NotSame(t, first, second)
	assert.True(t, first.disposed.Load())
	assert.False(t, second.disposed.Load())
}

func TestBoard_PanicInTickIsRecovered(t *testing.T) {
	ctx := context.Background()
	em := newRecEmitter()
	page, _ := fakePage("boom", 5*time.Millisecond, true)
	b := New(WithPages(page), WithEmitter(em))

	require.NoError(t, b.Mount(ctx, "boom"))
	defer b.UnmountAll(ctx)

	counter := metrics.SimTicksTotal.WithLabelValues("boom", "boom-panel", "tick", "panic")
	require.Eventually(t, func() bool { return testutil.ToFloat64(counter) >= 3 }, 2*time.Second, 5*time.Millisecond,
		"loop keeps running after a panic")
	assert.Zero(t, em.panelCount("boom/boom-panel"), "panicked ticks are not published")
}

func TestBoard_SeededSources(t *testing.T) {
	a := New(WithSeed(7), WithPages())
	b := New(WithSeed(7), WithPages())

	r1 := a.source("agents", "typing-dynamics", "keystrokes")
	r2 := b.source("agents", "typing-dynamics", "keystrokes")
	r3 := a.source("agents", "touch-patterns", "gestures")
	for i := 0; i < 5; i++ {
		v1, v2, v3 := r1.Float64(), r2.Float64(), r3.Float64()
		assert.Equal(t, v1, v2)
		assert.NotEqual(t, v1, v3)
	}
}

func TestBoard_MountAllDefaultPages(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.MountAll(ctx))
	defer b.UnmountAll(ctx)

	for _, p := range b.Pages() {
		assert.True(t, p.Mounted, p.Slug)
		snap, err := b.Snapshot(p.Slug)
		require.NoError(t, err)
		assert.Len(t, snap.Panels, len(p.Panels), p.Slug)
	}

	b.UnmountAll(ctx)
	for _, p := range b.Pages() {
		assert.False(t, p.Mounted, p.Slug)
	}
}

func TestBoard_MonitoringFlow(t *testing.T) {
	ctx := context.Background()
	store := sessions.NewMemoryStore()
	em := newRecEmitter()
	b := New(WithRecorder(store), WithEmitter(em))

	_, err := b.Monitor(ctx, ActionStart)
	assert.ErrorIs(t, err, ErrNotMounted)

	require.NoError(t, b.Ensure(ctx, DashboardSlug))
	defer b.UnmountAll(ctx)

	st, err := b.Monitor(ctx, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusScanning, st.Status)
	assert.NotEmpty(t, st.SessionID)

	before := testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("complete"))
	st, err = b.Monitor(ctx, ActionStop)
	require.NoError(t, err)
	assert.Equal(t, monitor.StatusComplete, st.Status)
	assert.Zero(t, st.Duration)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("complete")))

	saved, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	_, err = b.Monitor(ctx, "explode")
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	em.mu.Lock()
	assert.Len(t, em.monitoring, 2)
	em.mu.Unlock()
	assert.GreaterOrEqual(t, em.panelCount("dashboard/monitoring"), 2)
}

// heldRecorder blocks Save until release is closed.
type heldRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (r *heldRecorder) Save(context.Context, *sessions.Summary) error {
	close(r.entered)
	<-r.release
	return nil
}

// pageSeries counts the panel_value series exported for a page.
func pageSeries(t *testing.T, page string) int {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	go func() {
		metrics.PanelValue.Collect(ch)
		close(ch)
	}()
	n := 0
	for m := range ch {
		var d dto.Metric
		require.NoError(t, m.Write(&d))
		for _, l := range d.GetLabel() {
			if l.GetName() == "page" && l.GetValue() == page {
				n++
			}
		}
	}
	return n
}

func TestBoard_MonitorRacingUnmountPublishesNothing(t *testing.T) {
	ctx := context.Background()
	rec := &heldRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	em := newRecEmitter()
	b := New(WithRecorder(rec), WithEmitter(em))

	require.NoError(t, b.Ensure(ctx, DashboardSlug))
	_, err := b.Monitor(ctx, ActionStart)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := b.Monitor(ctx, ActionStop)
		done <- err
	}()

	select {
	case <-rec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("stop never reached the recorder")
	}
	require.NoError(t, b.Unmount(ctx, DashboardSlug))

	published := em.panelCount("dashboard/monitoring")
	em.mu.Lock()
	transitions := len(em.monitoring)
	em.mu.Unlock()
	assert.Zero(t, pageSeries(t, DashboardSlug))

	close(rec.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	assert.Equal(t, published, em.panelCount("dashboard/monitoring"))
	assert.Zero(t, pageSeries(t, DashboardSlug))
	em.mu.Lock()
	defer em.mu.Unlock()
	assert.Len(t, em.monitoring, transitions)
	require.NotEmpty(t, em.pages)
	assert.Equal(t, "-"+DashboardSlug, em.pages[len(em.pages)-1])
}

func TestBoard_Controls(t *testing.T) {
	ctx := context.Background()
	b := New()
	for _, slug := range []string{"detection", "privacy", "analytics"} {
		require.NoError(t, b.Mount(ctx, slug))
	}
	defer b.UnmountAll(ctx)

	v := 60.0
	snap, err := b.Control(ctx, "detection", "anomaly-threshold", ControlRequest{Action: ActionSetThreshold, Name: "Typing Anomaly", Value: &v})
	require.NoError(t, err)
	th := snap.(panels.ThresholdSnapshot)
	assert.Equal(t, 60.0, th.Thresholds[0].Current)
	assert.Equal(t, "medium", th.Thresholds[0].Sensitivity)

	_, err = b.Control(ctx, "detection", "anomaly-threshold", ControlRequest{Action: ActionSetThreshold, Name: "Typing Anomaly"})
	assert.ErrorIs(t, err, panels.ErrInvalidValue)

	off := false
	snap, err = b.Control(ctx, "detection", "anomaly-threshold", ControlRequest{Action: ActionSetAdaptive, Enabled: &off})
	require.NoError(t, err)
	assert.Equal(t, "Manual", snap.(panels.ThresholdSnapshot).Mode)

	_, err = b.Control(ctx, "detection", "real-time-detector", ControlRequest{Action: ActionGenerate})
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	snap, err = b.Control(ctx, "privacy", "privacy-dashboard", ControlRequest{Action: ActionToggleControl, Name: "federatedLearning"})
	require.NoError(t, err)
	assert.True(t, snap.(panels.PrivacySnapshot).DataControls["federatedLearning"])

	_, err = b.Control(ctx, "privacy", "privacy-dashboard", ControlRequest{Action: ActionToggleControl, Name: "telemetry"})
	assert.ErrorIs(t, err, panels.ErrUnknownControl)

	snap, err = b.Control(ctx, "privacy", "federated-learning", ControlRequest{Action: ActionSetEnabled, Enabled: &off})
	require.NoError(t, err)
	assert.Equal(t, "Disabled", snap.(panels.FederatedSnapshot).Status)

	snap, err = b.Control(ctx, "analytics", "fraud-analytics", ControlRequest{Action: ActionSetTimeRange, Name: "30d"})
	require.NoError(t, err)
	assert.Equal(t, "30d", snap.(panels.FraudSnapshot).TimeRange)

	_, err = b.Control(ctx, "analytics", "fraud-analytics", ControlRequest{Action: ActionSetTimeRange, Name: "1y"})
	assert.ErrorIs(t, err, panels.ErrInvalidValue)

	snap, err = b.Control(ctx, "analytics", "reporting", ControlRequest{Action: ActionGenerate, Name: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", snap.(panels.ReportingSnapshot).Generating)

	_, err = b.Control(ctx, "analytics", "reporting", ControlRequest{Action: ActionGenerate, Name: "1"})
	assert.ErrorIs(t, err, panels.ErrBusy)

	_, err = b.Control(ctx, "analytics", "reporting", ControlRequest{Action: ActionGenerate, Name: "99"})
	assert.ErrorIs(t, err, panels.ErrUnknownReport)

	// Unmounting cancels the pending generation timer.
	require.NoError(t, b.Unmount(ctx, "analytics"))
	_, err = b.Control(ctx, "analytics", "reporting", ControlRequest{Action: ActionSetPeriod, Name: "daily"})
	assert.ErrorIs(t, err, ErrNotMounted)
}
