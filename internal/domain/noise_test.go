package domain

import (
	"encoding/json"
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateVariance covers the reference scenarios for the noise engine:
// empty input, a single judgment, unanimous scores, a split panel and a
// tight cluster.
func TestCalculateVariance(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   NoiseReport
	}{
		{
			name:   "no judgments yields zero report",
			scores: nil,
			want:   NoiseReport{},
		},
		{
			name:   "empty slice yields zero report",
			scores: []int{},
			want:   NoiseReport{},
		},
		{
			name:   "single judgment has no spread",
			scores: []int{7},
			want:   NoiseReport{Count: 1, Mean: 7},
		},
		{
			name:   "unanimous panel",
			scores: []int{5, 5, 5, 5},
			want:   NoiseReport{Count: 4, Mean: 5},
		},
		{
			name:   "split panel is high noise",
			scores: []int{1, 10, 1, 10},
			want:   NoiseReport{Count: 4, Mean: 5.5, StdDev: 4.5, IsHighNoise: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateVariance(tt.scores))
		})
	}
}

// TestCalculateVariance_PopulationStdDev checks that the spread divides by N
// rather than N-1.
func TestCalculateVariance_PopulationStdDev(t *testing.T) {
	got := CalculateVariance([]int{4, 5, 6})

	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 5.0, got.Mean)
	assert.InDelta(t, 0.816496580927726, got.StdDev, 1e-12)
	assert.False(t, got.IsHighNoise)
}

// TestNoiseEngine_Threshold verifies that the high-noise flag uses a strict
// comparison against the configured threshold.
func TestNoiseEngine_Threshold(t *testing.T) {
	// [3, 7] has a population standard deviation of exactly 2.
	scores := []int{3, 7}

	tests := []struct {
		name      string
		threshold float64
		wantHigh  bool
	}{
		{name: "equal to threshold is not high", threshold: 2.0, wantHigh: false},
		{name: "below threshold is high", threshold: 1.5, wantHigh: true},
		{name: "above threshold is not high", threshold: 3.0, wantHigh: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewNoiseEngine(NoiseConfig{HighNoiseThreshold: tt.threshold})
			require.NoError(t, err)

			got := engine.Calculate(scores)
			assert.Equal(t, 2.0, got.StdDev)
			assert.Equal(t, tt.wantHigh, got.IsHighNoise)
		})
	}
}

// TestNewNoiseEngine_InvalidConfig ensures non-positive thresholds are rejected.
func TestNewNoiseEngine_InvalidConfig(t *testing.T) {
	for _, threshold := range []float64{0, -1} {
		_, err := NewNoiseEngine(NoiseConfig{HighNoiseThreshold: threshold})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	}
}

// TestCalculateVariance_Properties exercises the engine on random panels and
// checks the invariants that must hold for any input: the mean lies within
// the observed range, the spread is non-negative, repeated calls agree and
// permuting the input changes nothing.
func TestCalculateVariance_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(40)
		scores := make([]int, n)
		for j := range scores {
			scores[j] = MinScore + rng.Intn(MaxScore)
		}

		got := CalculateVariance(scores)

		assert.Equal(t, n, got.Count)
		assert.GreaterOrEqual(t, got.Mean, float64(slices.Min(scores)))
		assert.LessOrEqual(t, got.Mean, float64(slices.Max(scores)))
		assert.GreaterOrEqual(t, got.StdDev, 0.0)
		if n == 1 {
			assert.Zero(t, got.StdDev)
		}

		assert.Equal(t, got, CalculateVariance(scores), "repeat call must be identical")

		shuffled := slices.Clone(scores)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, got, CalculateVariance(shuffled), "order must not matter")
	}
}

// TestCalculateVariance_LargePanel keeps the spread finite once the count
// passes 2^21, where the cube of n no longer fits scaled integer math.
func TestCalculateVariance_LargePanel(t *testing.T) {
	const n = 1 << 21
	scores := make([]int, n)
	for i := range scores {
		scores[i] = MinScore + i%MaxScore
	}

	got := CalculateVariance(scores)

	assert.Equal(t, n, got.Count)
	assert.InDelta(t, 5.5, got.Mean, 1e-3)
	assert.False(t, math.IsNaN(got.StdDev))
	assert.InDelta(t, math.Sqrt(8.25), got.StdDev, 1e-3)
	assert.True(t, got.IsHighNoise)

	_, err := json.Marshal(got)
	assert.NoError(t, err)
}

// TestCalculateVariance_ExtremeScores covers scores far outside the judgment
// range, which the engine accepts without validation.
func TestCalculateVariance_ExtremeScores(t *testing.T) {
	tests := []struct {
		name       string
		scores     []int
		wantMean   float64
		wantStdDev float64
	}{
		{"max_int", []int{math.MaxInt64, math.MaxInt64}, float64(math.MaxInt64), 0},
		{"min_int", []int{math.MinInt64, math.MinInt64, math.MinInt64}, float64(math.MinInt64), 0},
		{"symmetric", []int{math.MinInt64, math.MaxInt64}, 0, float64(math.MaxInt64)},
		{"negative", []int{-3, -1}, -2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateVariance(tt.scores)

			assert.Equal(t, len(tt.scores), got.Count)
			assert.Equal(t, tt.wantMean, got.Mean)
			assert.InEpsilon(t, tt.wantStdDev+1, got.StdDev+1, 1e-9)
			assert.GreaterOrEqual(t, got.Mean, float64(slices.Min(tt.scores)))
			assert.LessOrEqual(t, got.Mean, float64(slices.Max(tt.scores)))

			_, err := json.Marshal(got)
			assert.NoError(t, err)
		})
	}
}

// TestCalculateVariance_PropertiesSignedRange checks the range and sign
// invariants over random signed 64-bit scores.
func TestCalculateVariance_PropertiesSignedRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(64)
		scores := make([]int, n)
		for j := range scores {
			v := int(rng.Uint64())
			if rng.Intn(4) == 0 {
				v = []int{math.MinInt64, math.MaxInt64, 0, -1}[rng.Intn(4)]
			}
			scores[j] = v
		}

		got := CalculateVariance(scores)

		assert.Equal(t, n, got.Count)
		assert.GreaterOrEqual(t, got.Mean, float64(slices.Min(scores)))
		assert.LessOrEqual(t, got.Mean, float64(slices.Max(scores)))
		assert.GreaterOrEqual(t, got.StdDev, 0.0)
		assert.False(t, math.IsNaN(got.StdDev) || math.IsInf(got.StdDev, 0), "scores %v", scores)
	}
}

// TestCalculateVariance_DoesNotMutateInput guards the caller's slice.
func TestCalculateVariance_DoesNotMutateInput(t *testing.T) {
	scores := []int{9, 1, 5}
	CalculateVariance(scores)
	assert.Equal(t, []int{9, 1, 5}, scores)
}

// TestCalculateVariance_OutOfRangeScores shows that values outside 1-10 are
// computed rather than rejected.
func TestCalculateVariance_OutOfRangeScores(t *testing.T) {
	got := CalculateVariance([]int{0, 20})
	assert.Equal(t, NoiseReport{Count: 2, Mean: 10, StdDev: 10, IsHighNoise: true}, got)
}

// TestNoiseEngine_Concurrent runs the engine from many goroutines at once.
func TestNoiseEngine_Concurrent(t *testing.T) {
	engine, err := NewNoiseEngine(DefaultNoiseConfig())
	require.NoError(t, err)

	want := engine.Calculate([]int{1, 10, 1, 10})

	var wg sync.WaitGroup
	results := make([]NoiseReport, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Calculate([]int{10, 1, 10, 1})
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, want, r)
	}
}

// TestNoiseReport_Summary checks the prompt rendering of a report.
func TestNoiseReport_Summary(t *testing.T) {
	got := CalculateVariance([]int{1, 10, 1, 10}).Summary()
	assert.Equal(t, "Mean score: 5.5, Std Dev: 4.5, High noise: true", got)

	assert.Equal(t, "Mean score: 0, Std Dev: 0, High noise: false", NoiseReport{}.Summary())
}

// TestJudgmentScores preserves submission order.
func TestJudgmentScores(t *testing.T) {
	judgments := []Judgment{{Score: 3}, {Score: 8}, {Score: 5}}
	assert.Equal(t, []int{3, 8, 5}, JudgmentScores(judgments))
	assert.Empty(t, JudgmentScores(nil))
}
