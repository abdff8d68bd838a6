package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// Schedule is one repeating update of a panel.
type Schedule struct {
	Name  string
	Every time.Duration
	Run   func(r *rand.Rand, now time.Time)
}

// TickObserver is notified after every completed tick. panicked is true when
// the tick was recovered from a panic.
type TickObserver func(schedule string, panicked bool)

// Loop runs a Schedule on its own ticker goroutine until stopped.
type Loop struct {
	schedule Schedule
	rng      *rand.Rand
	logger   *slog.Logger
	observe  TickObserver

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	running   atomic.Bool
	ticks     atomic.Int64
}

// NewLoop creates a loop for s. observe may be nil.
func NewLoop(s Schedule, rng *rand.Rand, logger *slog.Logger, observe TickObserver) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		schedule: s,
		rng:      rng,
		logger:   logger,
		observe:  observe,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. Calling Start twice is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		l.running.Store(true)
		go l.run(ctx)
	})
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.running.Store(false)

	ticker := time.NewTicker(l.schedule.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case now := <-ticker.C:
			// A stop that raced the tick wins.
			select {
			case <-l.stop:
				return
			default:
			}
			l.safeTick(now)
		}
	}
}

func (l *Loop) safeTick(now time.Time) {
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			l.logger.Error("panic in simulation tick",
				"schedule", l.schedule.Name,
				"panic", fmt.Sprint(r),
			)
		}
		l.ticks.Add(1)
		if l.observe != nil {
			l.observe(l.schedule.Name, panicked)
		}
	}()
	l.schedule.Run(l.rng, now)
}

// Stop cancels the loop and blocks until any in-flight tick has returned.
// No callback runs after Stop returns. Stop is safe to call more than once
// and before Start.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	// A Stop before Start disarms Start.
	l.startOnce.Do(func() {})
	if l.started.Load() {
		<-l.done
	}
}

// Running reports whether the ticker goroutine is alive.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Ticks returns how many ticks have completed.
func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

// Name returns the schedule name.
func (l *Loop) Name() string {
	return l.schedule.Name
}
