package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk_StaysInRangeScenario(t *testing.T) {
	r := NewRand(42)
	for i := 0; i < 1000; i++ {
		v := Walk(r, 50, 0, 100, 10)
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 100.0)
	}
}

func TestWalk_RepeatedTicksStayInRange(t *testing.T) {
	cases := []struct {
		name            string
		start, min, max float64
		jitter          float64
	}{
		{"threat level", 15, 0, 100, 8},
		{"tight band", 99.7, 99, 100, 0.1},
		{"jitter wider than band", 12, 8, 25, 40},
		{"start on floor", 0, 0, 100, 25},
		{"start on ceiling", 100, 0, 100, 25},
		{"degenerate range", 5, 5, 5, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRand(7)
			v := tc.start
			for i := 0; i < 5000; i++ {
				v = Walk(r, v, tc.min, tc.max, tc.jitter)
				if v < tc.min || v > tc.max || math.IsNaN(v) {
					t.Fatalf("tick %d: %v escaped [%v, %v]", i, v, tc.min, tc.max)
				}
			}
		})
	}
}

func TestWalk_DeltaBoundedByHalfJitter(t *testing.T) {
	r := NewRand(1)
	for i := 0; i < 1000; i++ {
		v := Walk(r, 50, 0, 100, 10)
		assert.LessOrEqual(t, math.Abs(v-50), 5.0)
	}
}

func TestWalk_SeededIsReproducible(t *testing.T) {
	a, b := NewRand(99), NewRand(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, Walk(a, 50, 0, 100, 10), Walk(b, 50, 0, 100, 10))
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 10))
	assert.Equal(t, 10.0, Clamp(11, 0, 10))
	assert.Equal(t, 4.5, Clamp(4.5, 0, 10))
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 10))
	assert.Equal(t, 10.0, Clamp(math.Inf(1), 0, 10))
	assert.Equal(t, 0.0, Clamp(math.Inf(-1), 0, 10))
}

func TestRise_NeverDecreasesAndCaps(t *testing.T) {
	r := NewRand(3)
	v := 99.0
	for i := 0; i < 1000; i++ {
		next := Rise(r, v, 100, 0.5)
		require.GreaterOrEqual(t, next, v)
		require.LessOrEqual(t, next, 100.0)
		v = next
	}
}

func TestIntIn(t *testing.T) {
	r := NewRand(5)
	for i := 0; i < 500; i++ {
		n := IntIn(r, 750, 200)
		require.GreaterOrEqual(t, n, 750)
		require.Less(t, n, 950)
	}
	assert.Equal(t, 8, IntIn(r, 8, 0))
}

func TestNudge_RespectsFloor(t *testing.T) {
	r := NewRand(11)
	v := 1000
	for i := 0; i < 2000; i++ {
		v = Nudge(r, v, 20, 1000)
		require.GreaterOrEqual(t, v, 1000)
	}
}

func TestRoll_Probability(t *testing.T) {
	r := NewRand(13)
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if Roll(r, 0.7) {
			hits++
		}
	}
	ratio := float64(hits) / n
	assert.InDelta(t, 0.3, ratio, 0.02)
}

func TestPick(t *testing.T) {
	r := NewRand(17)
	items := []string{"swipe", "tap", "pinch"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[Pick(r, items)] = true
	}
	assert.Len(t, seen, 3)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12.3, Round(12.345, 1))
	assert.Equal(t, 12.35, Round(12.345001, 2))
	assert.Equal(t, 12.0, Round(11.6, 0))
}
