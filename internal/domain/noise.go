// Package domain contains the core business types for Clarvoy: decisions,
// blind judgments, debate comments, attachments and audit entries, plus the
// noise engine that turns a set of judgment scores into a disagreement signal.
//
// Nothing in this package performs I/O. All types are plain values that can be
// shared between goroutines once constructed.
package domain

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every Validate method in the package.
// validator.Validate caches struct metadata and is safe for concurrent use.
var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// DefaultHighNoiseThreshold is the standard deviation above which a set of
// judgments on the 1-10 scale is flagged as high noise.
const DefaultHighNoiseThreshold = 2.0

// NoiseConfig controls how the noise engine classifies disagreement.
type NoiseConfig struct {
	// HighNoiseThreshold is compared strictly: a report is high noise only when
	// its standard deviation is greater than this value.
	HighNoiseThreshold float64 `yaml:"high_noise_threshold" json:"high_noise_threshold" koanf:"high_noise_threshold" validate:"gt=0"`
}

// DefaultNoiseConfig returns the configuration used when none is supplied.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{HighNoiseThreshold: DefaultHighNoiseThreshold}
}

// NoiseReport summarises the spread of the scores submitted for one decision.
// It is recomputed on every request and never persisted.
type NoiseReport struct {
	Count       int     `json:"count" yaml:"count"`
	Mean        float64 `json:"mean" yaml:"mean"`
	StdDev      float64 `json:"stdDev" yaml:"stdDev"`
	IsHighNoise bool    `json:"isHighNoise" yaml:"isHighNoise"`
}

// Summary renders the report the way it is embedded in coaching prompts.
func (r NoiseReport) Summary() string {
	return fmt.Sprintf("Mean score: %s, Std Dev: %s, High noise: %t",
		FormatScore(r.Mean), FormatScore(r.StdDev), r.IsHighNoise)
}

// FormatScore prints a float with the shortest representation that round-trips,
// so 5 renders as "5" and 5.5 as "5.5".
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NoiseEngine computes noise reports with a fixed configuration.
// The zero value is not usable; construct one with NewNoiseEngine.
type NoiseEngine struct {
	config NoiseConfig
}

// NewNoiseEngine validates cfg and returns an engine bound to it.
func NewNoiseEngine(cfg NoiseConfig) (NoiseEngine, error) {
	if err := validate.Struct(cfg); err != nil {
		return NoiseEngine{}, fmt.Errorf("%w: noise: %v", ErrInvalidConfiguration, err)
	}
	return NoiseEngine{config: cfg}, nil
}

// Config returns the configuration the engine was built with.
func (e NoiseEngine) Config() NoiseConfig { return e.config }

// Calculate returns the count, mean, population standard deviation and
// high-noise flag for scores. It never fails: an empty slice yields a zero
// report and a single score yields a standard deviation of zero. Scores are
// not range checked here; that is the job of judgment validation.
func (e NoiseEngine) Calculate(scores []int) NoiseReport {
	n := len(scores)
	if n == 0 {
		return NoiseReport{}
	}

	// Sums are float64 so extreme scores degrade to an approximation
	// instead of wrapping.
	lo, hi := scores[0], scores[0]
	var sum float64
	for _, s := range scores {
		sum += float64(s)
		lo, hi = min(lo, s), max(hi, s)
	}
	fn := float64(n)
	mean := min(max(sum/fn, float64(lo)), float64(hi))

	if n < 2 || lo == hi {
		return NoiseReport{Count: n, Mean: mean}
	}

	// Deviations are scaled by n. For realistic panels they stay integral,
	// so the squares are exact and independent of input order.
	var squares float64
	for _, s := range scores {
		d := float64(s)*fn - sum
		squares += d * d
	}
	stdDev := math.Sqrt(squares / (fn * fn * fn))

	return NoiseReport{
		Count:       n,
		Mean:        mean,
		StdDev:      stdDev,
		IsHighNoise: stdDev > e.config.HighNoiseThreshold,
	}
}

var defaultEngine = NoiseEngine{config: DefaultNoiseConfig()}

// CalculateVariance is Calculate with the default threshold.
func CalculateVariance(scores []int) NoiseReport {
	return defaultEngine.Calculate(scores)
}

// JudgmentScores extracts the score of every judgment in submission order.
func JudgmentScores(judgments []Judgment) []int {
	scores := make([]int, len(judgments))
	for i, j := range judgments {
		scores[i] = j.Score
	}
	return scores
}
