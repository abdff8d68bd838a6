// Package board mounts dashboard pages. Mounting a page builds fresh panels
// and starts one loop per panel schedule; unmounting stops the loops and
// discards the panels. After each tick the board exports the panel's gauges
// and hands its snapshot to an Emitter.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/mbd888/guardlens/internal/metrics"
	"github.com/mbd888/guardlens/internal/monitor"
	"github.com/mbd888/guardlens/internal/panels"
	"github.com/mbd888/guardlens/internal/sessions"
	"github.com/mbd888/guardlens/internal/simulate"
	"github.com/mbd888/guardlens/internal/traces"
)

var (
	ErrPageNotFound   = errors.New("board: page not found")
	ErrPanelNotFound  = errors.New("board: panel not found")
	ErrAlreadyMounted = errors.New("board: page already mounted")
	ErrNotMounted     = errors.New("board: page not mounted")
)

// Emitter receives live updates. The realtime hub implements it.
type Emitter interface {
	PublishPanel(page, panel string, snapshot any)
	PublishMonitoring(state any)
	PublishPage(page string, mounted bool)
}

type nopEmitter struct{}

func (nopEmitter) PublishPanel(string, string, any) {}
func (nopEmitter) PublishMonitoring(any)            {}
func (nopEmitter) PublishPage(string, bool)         {}

// countingRecorder counts closed sessions before handing them on.
type countingRecorder struct {
	next monitor.Recorder
}

func (r countingRecorder) Save(ctx context.Context, s *sessions.Summary) error {
	metrics.SessionsTotal.WithLabelValues(string(s.Outcome)).Inc()
	if r.next == nil {
		return nil
	}
	return r.next.Save(ctx, s)
}

// Option configures a Board.
type Option func(*Board)

func WithEmitter(e Emitter) Option {
	return func(b *Board) { b.emitter = e }
}

// WithRecorder receives monitoring session summaries.
func WithRecorder(r monitor.Recorder) Option {
	return func(b *Board) { b.recorder = countingRecorder{next: r} }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.logger = l }
}

// WithSeed makes every loop's random source reproducible. Zero keeps the
// default non-deterministic seeding.
func WithSeed(seed uint64) Option {
	return func(b *Board) { b.seed = seed }
}

func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithPages replaces the default catalog.
func WithPages(pages ...Page) Option {
	return func(b *Board) { b.pages = pages }
}

type mount struct {
	page   *Page
	panels []panels.Panel
	byID   map[string]panels.Panel
	loops  []*simulate.Loop
	at     time.Time

	// gate orders out-of-tick publishes against Unmount.
	gate   sync.Mutex
	closed bool
}

// live runs fn unless the mount has been closed.
func (m *mount) live(fn func()) {
	m.gate.Lock()
	defer m.gate.Unlock()
	if !m.closed {
		fn()
	}
}

func (m *mount) close() {
	m.gate.Lock()
	m.closed = true
	m.gate.Unlock()
}

// Board owns the mounted pages.
type Board struct {
	mu       sync.RWMutex
	pages    []Page
	bySlug   map[string]*Page
	panelIDs map[string][]string
	mounted  map[string]*mount

	emitter  Emitter
	recorder monitor.Recorder
	logger   *slog.Logger
	seed     uint64
	now      func() time.Time
}

func New(opts ...Option) *Board {
	b := &Board{
		mounted:  make(map[string]*mount),
		emitter:  nopEmitter{},
		recorder: countingRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.emitter == nil {
		b.emitter = nopEmitter{}
	}
	if b.pages == nil {
		b.pages = b.defaultCatalog()
	}
	b.bySlug = make(map[string]*Page, len(b.pages))
	b.panelIDs = make(map[string][]string, len(b.pages))
	for i := range b.pages {
		p := &b.pages[i]
		b.bySlug[p.Slug] = p
		for _, f := range p.Factories {
			b.panelIDs[p.Slug] = append(b.panelIDs[p.Slug], f().ID())
		}
	}
	return b
}

// Pages lists the catalog in order.
func (b *Board) Pages() []PageInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]PageInfo, 0, len(b.pages))
	for _, p := range b.pages {
		_, on := b.mounted[p.Slug]
		out = append(out, PageInfo{
			Slug:    p.Slug,
			Path:    p.Path,
			Title:   p.Title,
			Panels:  append([]string(nil), b.panelIDs[p.Slug]...),
			Mounted: on,
		})
	}
	return out
}

// Lookup returns the catalog page for slug.
func (b *Board) Lookup(slug string) (Page, bool) {
	p, ok := b.bySlug[slug]
	if !ok {
		return Page{}, false
	}
	return *p, true
}

// Mount builds fresh panels for the page and starts their loops. The loops
// outlive ctx's cancellation; only Unmount stops them.
func (b *Board) Mount(ctx context.Context, slug string) error {
	ctx, span := traces.StartSpan(ctx, "board.Mount", traces.Page(slug))
	defer span.End()

	page, ok := b.bySlug[slug]
	if !ok {
		span.SetStatus(codes.Error, "page not found")
		return fmt.Errorf("%w: %q", ErrPageNotFound, slug)
	}

	b.mu.Lock()
	if _, on := b.mounted[slug]; on {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAlreadyMounted, slug)
	}
	m := &mount{
		page: page,
		byID: make(map[string]panels.Panel, len(page.Factories)),
		at:   b.now(),
	}
	runCtx := context.WithoutCancel(ctx)
	for _, f := range page.Factories {
		p := f()
		m.panels = append(m.panels, p)
		m.byID[p.ID()] = p
		for _, s := range p.Schedules() {
			loop := simulate.NewLoop(s, b.source(slug, p.ID(), s.Name),
				b.logger.With("page", slug, "panel", p.ID()),
				b.observer(slug, p),
			)
			m.loops = append(m.loops, loop)
			loop.Start(runCtx)
		}
	}
	b.mounted[slug] = m
	metrics.MountedPages.Set(float64(len(b.mounted)))
	b.mu.Unlock()

	for _, p := range m.panels {
		metrics.SetPanelValues(slug, p.ID(), p.Gauges())
	}
	b.emitter.PublishPage(slug, true)
	b.logger.Info("page mounted", "page", slug, "panels", len(m.panels), "loops", len(m.loops))
	return nil
}

// Ensure mounts the page unless it is already mounted.
func (b *Board) Ensure(ctx context.Context, slug string) error {
	if err := b.Mount(ctx, slug); err != nil && !errors.Is(err, ErrAlreadyMounted) {
		return err
	}
	return nil
}

// Unmount stops every loop of the page and then disposes its panels. No
// tick runs and nothing is published for the page once Unmount returns.
func (b *Board) Unmount(ctx context.Context, slug string) error {
	_, span := traces.StartSpan(ctx, "board.Unmount", traces.Page(slug))
	defer span.End()

	if _, ok := b.bySlug[slug]; !ok {
		span.SetStatus(codes.Error, "page not found")
		return fmt.Errorf("%w: %q", ErrPageNotFound, slug)
	}

	b.mu.Lock()
	m, on := b.mounted[slug]
	if !on {
		b.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotMounted, slug)
	}
	delete(b.mounted, slug)
	metrics.MountedPages.Set(float64(len(b.mounted)))
	b.mu.Unlock()

	// Waits for a control publish already in progress; later ones are dropped.
	m.close()

	// Loops are stopped outside the lock: Stop waits for an in-flight tick.
	for _, l := range m.loops {
		l.Stop()
	}
	for _, p := range m.panels {
		if d, ok := p.(panels.Disposer); ok {
			d.Dispose()
		}
	}
	metrics.ForgetPage(slug)
	b.emitter.PublishPage(slug, false)
	b.logger.Info("page unmounted", "page", slug, "mountedFor", b.now().Sub(m.at).Round(time.Second).String())
	return nil
}

// MountAll mounts every catalog page that is not mounted yet.
func (b *Board) MountAll(ctx context.Context) error {
	for _, p := range b.pages {
		if err := b.Ensure(ctx, p.Slug); err != nil {
			return err
		}
	}
	return nil
}

// UnmountAll unmounts every mounted page.
func (b *Board) UnmountAll(ctx context.Context) {
	b.mu.RLock()
	slugs := make([]string, 0, len(b.mounted))
	for s := range b.mounted {
		slugs = append(slugs, s)
	}
	b.mu.RUnlock()
	for _, s := range slugs {
		if err := b.Unmount(ctx, s); err != nil && !errors.Is(err, ErrNotMounted) {
			b.logger.Warn("unmount failed", "page", s, "error", err)
		}
	}
}

// Mounted reports whether the page is mounted.
func (b *Board) Mounted(slug string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, on := b.mounted[slug]
	return on
}

// PageSnapshot is the state of every panel on a mounted page.
type PageSnapshot struct {
	Slug      string         `json:"slug"`
	Path      string         `json:"path"`
	Title     string         `json:"title"`
	MountedAt time.Time      `json:"mountedAt"`
	Panels    map[string]any `json:"panels"`
}

// Snapshot reads every panel of a mounted page.
func (b *Board) Snapshot(slug string) (PageSnapshot, error) {
	m, err := b.lookup(slug)
	if err != nil {
		return PageSnapshot{}, err
	}
	out := PageSnapshot{
		Slug:      m.page.Slug,
		Path:      m.page.Path,
		Title:     m.page.Title,
		MountedAt: m.at,
		Panels:    make(map[string]any, len(m.panels)),
	}
	for _, p := range m.panels {
		out.Panels[p.ID()] = p.Snapshot()
	}
	return out, nil
}

// PanelSnapshot reads one panel of a mounted page.
func (b *Board) PanelSnapshot(slug, id string) (any, error) {
	p, err := b.Panel(slug, id)
	if err != nil {
		return nil, err
	}
	return p.Snapshot(), nil
}

// Panel returns the live panel instance. It stays valid only until the
// page is unmounted.
func (b *Board) Panel(slug, id string) (panels.Panel, error) {
	_, p, err := b.mountedPanel(slug, id)
	return p, err
}

func (b *Board) mountedPanel(slug, id string) (*mount, panels.Panel, error) {
	m, err := b.lookup(slug)
	if err != nil {
		return nil, nil, err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q on page %q", ErrPanelNotFound, id, slug)
	}
	return m, p, nil
}

// Monitoring returns the session of the mounted dashboard.
func (b *Board) Monitoring() (*monitor.Session, error) {
	_, s, err := b.monitoring()
	return s, err
}

func (b *Board) monitoring() (*mount, *monitor.Session, error) {
	m, p, err := b.mountedPanel(DashboardSlug, monitor.PanelID)
	if err != nil {
		return nil, nil, err
	}
	s, ok := p.(*monitor.Session)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q is not a monitoring session", ErrPanelNotFound, monitor.PanelID)
	}
	return m, s, nil
}

func (b *Board) lookup(slug string) (*mount, error) {
	if _, ok := b.bySlug[slug]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, slug)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, on := b.mounted[slug]
	if !on {
		return nil, fmt.Errorf("%w: %q", ErrNotMounted, slug)
	}
	return m, nil
}

// observer exports and publishes the panel after each completed tick. It
// runs inside the loop's tick, so Loop.Stop also fences it.
func (b *Board) observer(page string, p panels.Panel) simulate.TickObserver {
	id := p.ID()
	return func(schedule string, panicked bool) {
		result := "ok"
		if panicked {
			result = "panic"
		}
		metrics.SimTicksTotal.WithLabelValues(page, id, schedule, result).Inc()
		if panicked {
			return
		}
		metrics.SetPanelValues(page, id, p.Gauges())
		b.emitter.PublishPanel(page, id, p.Snapshot())
	}
}

// publish pushes the panel's current state outside the tick cycle, after a
// control changed it. Nothing is exported once the page is unmounted.
func (b *Board) publish(m *mount, p panels.Panel) any {
	snap := p.Snapshot()
	page := m.page.Slug
	m.live(func() {
		metrics.SetPanelValues(page, p.ID(), p.Gauges())
		b.emitter.PublishPanel(page, p.ID(), snap)
	})
	return snap
}

// source returns the random source of one loop. With a seed, each loop's
// source is derived from the seed and its page/panel/schedule key.
func (b *Board) source(page, panel, schedule string) *rand.Rand {
	if b.seed == 0 {
		return simulate.NewRand(0)
	}
	s := b.seed ^ xxhash.Sum64String(page+"/"+panel+"/"+schedule)
	if s == 0 {
		s = b.seed
	}
	return simulate.NewRand(s)
}
