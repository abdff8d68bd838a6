package simulate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetric_ClampsStart(t *testing.T) {
	m := NewMetric("cpu", 120, 15, 80, 10)
	assert.Equal(t, 80.0, m.Value)
	require.NoError(t, m.Validate())
}

func TestMetric_StepKeepsInvariant(t *testing.T) {
	r := NewRand(21)
	m := NewMetric("throughput", 867, 700, 1000, 50)
	for i := 0; i < 1000; i++ {
		m.Step(r)
		require.NoError(t, m.Validate())
	}
}

func TestMetric_Validate(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		want   error
	}{
		{"ok", Metric{Name: "a", Value: 5, Min: 0, Max: 10}, nil},
		{"inverted", Metric{Name: "b", Value: 5, Min: 10, Max: 0}, ErrInvalidRange},
		{"nan", Metric{Name: "c", Value: math.NaN(), Min: 0, Max: 10}, ErrNotFinite},
		{"inf", Metric{Name: "d", Value: math.Inf(1), Min: 0, Max: 10}, ErrNotFinite},
		{"below", Metric{Name: "e", Value: -1, Min: 0, Max: 10}, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.metric.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.metric.Name)
		})
	}
}

func TestMetric_Rounded(t *testing.T) {
	m := Metric{Value: 97.26}
	assert.Equal(t, 97.3, m.Rounded())
}
