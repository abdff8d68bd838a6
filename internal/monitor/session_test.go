package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/guardlens/internal/sessions"
	"github.com/mbd888/guardlens/internal/simulate"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Save(context.Context, *sessions.Summary) error {
	f.calls++
	return errors.New("db down")
}

func newTestSession(t *testing.T) (*Session, *sessions.MemoryStore, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := sessions.NewMemoryStore()
	return New(WithRecorder(store), WithClock(clk.Now)), store, clk
}

func tickClock(s *Session, n int) {
	for i := 0; i < n; i++ {
		s.clockTick(nil, time.Time{})
	}
}

func TestSession_InitialState(t *testing.T) {
	s := New()
	st := s.State()
	assert.False(t, st.Monitoring)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Zero(t, st.Duration)
	assert.Nil(t, st.LastScan)

	v := s.View()
	assert.Equal(t, 15.0, v.ThreatLevel)
	assert.Equal(t, 3, v.Anomalies)
	assert.Equal(t, 5, v.ActiveAgents)
	for _, a := range v.Agents {
		assert.Equal(t, "standby", a.Status)
	}
}

func TestSession_StartThenStop(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newTestSession(t)

	st := s.Start(ctx)
	assert.True(t, st.Monitoring)
	assert.Equal(t, StatusScanning, st.Status)
	assert.Zero(t, st.Duration)
	require.NotNil(t, st.LastScan)
	assert.True(t, st.LastScan.Equal(clk.Now()))
	for _, a := range s.View().Agents {
		assert.Equal(t, "active", a.Status)
	}

	tickClock(s, 42)
	clk.Advance(42 * time.Second)
	assert.Equal(t, 42, s.State().Duration)

	st = s.Stop(ctx)
	assert.False(t, st.Monitoring)
	assert.Equal(t, StatusComplete, st.Status)
	assert.Zero(t, st.Duration)

	saved, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, sessions.OutcomeComplete, saved[0].Outcome)
	assert.Equal(t, 42, saved[0].DurationSeconds)
	assert.Equal(t, 42*time.Second, saved[0].EndedAt.Sub(saved[0].StartedAt))
}

func TestSession_PauseKeepsDuration(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t)
	s.Start(ctx)
	tickClock(s, 7)

	st := s.Pause(ctx)
	assert.False(t, st.Monitoring)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, 7, st.Duration)

	tickClock(s, 5)
	assert.Equal(t, 7, s.State().Duration, "clock must not advance while paused")

	saved, _ := store.List(ctx, 10)
	assert.Empty(t, saved, "pause does not close the session")
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t)
	s.Start(ctx)
	r := simulate.NewRand(1)
	for i := 0; i < 50; i++ {
		s.metricsTick(r, time.Time{})
	}
	tickClock(s, 3)

	st := s.Reset(ctx)
	assert.False(t, st.Monitoring)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Zero(t, st.Duration)
	assert.Nil(t, st.LastScan)
	assert.Empty(t, st.SessionID)

	v := s.View()
	assert.Zero(t, v.Anomalies)
	assert.Equal(t, 15.0, v.ThreatLevel)

	saved, _ := store.List(ctx, 10)
	require.Len(t, saved, 1)
	assert.Equal(t, sessions.OutcomeReset, saved[0].Outcome)
}

func TestSession_RestartClosesOpenSession(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newTestSession(t)
	first := s.Start(ctx)
	tickClock(s, 4)
	clk.Advance(4 * time.Second)
	second := s.Start(ctx)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Zero(t, second.Duration)

	saved, _ := store.List(ctx, 10)
	require.Len(t, saved, 1)
	assert.Equal(t, first.SessionID, saved[0].ID)
	assert.Equal(t, sessions.OutcomeRestarted, saved[0].Outcome)
	assert.Equal(t, 4, saved[0].DurationSeconds)
}

func TestSession_StopWithoutStartRecordsNothing(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t)
	st := s.Stop(ctx)
	assert.Equal(t, StatusComplete, st.Status)
	saved, _ := store.List(ctx, 10)
	assert.Empty(t, saved)
}

func TestSession_RecorderFailureDoesNotBlockTransition(t *testing.T) {
	ctx := context.Background()
	rec := &failingRecorder{}
	s := New(WithRecorder(rec))
	s.Start(ctx)
	st := s.Stop(ctx)
	assert.Equal(t, StatusComplete, st.Status)
	assert.Equal(t, 1, rec.calls)
}

func TestSession_MetricsOnlyMoveWhileMonitoring(t *testing.T) {
	s := New()
	r := simulate.NewRand(2)
	before := s.Gauges()
	for i := 0; i < 20; i++ {
		s.metricsTick(r, time.Time{})
	}
	assert.Equal(t, before, s.Gauges())

	s.Start(context.Background())
	for i := 0; i < 2000; i++ {
		s.metricsTick(r, time.Time{})
		require.NoError(t, s.threat.Validate())
		require.NoError(t, s.systemLoad.Validate())
		require.NoError(t, s.speed.Validate())
		require.NoError(t, s.accuracy.Validate())
	}
	assert.Greater(t, s.View().Anomalies, 3)
	assert.Equal(t, s.View().SystemLoad, s.View().Resources.CPU)
}

func TestSession_PeakThreatTracked(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t)
	s.Start(ctx)
	r := simulate.NewRand(3)
	peak := s.threat.Value
	for i := 0; i < 200; i++ {
		s.metricsTick(r, time.Time{})
		peak = max(peak, s.threat.Value)
	}
	s.Stop(ctx)
	saved, _ := store.List(ctx, 1)
	require.Len(t, saved, 1)
	assert.Equal(t, simulate.Round(peak, 1), saved[0].PeakThreat)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{599, "9:59"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{36000, "10:00:00"},
		{-4, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), "seconds=%d", tt.in)
	}
}
