package application

import (
	"context"
	"time"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// NoiseService computes the noise report of a decision from its stored
// judgments. Reports are recomputed on every call.
type NoiseService struct {
	judgments ports.JudgmentStore
	engine    domain.NoiseEngine
	observer  ports.NoiseObserver
}

// NewNoiseService returns a service using engine. observer may be nil.
func NewNoiseService(judgments ports.JudgmentStore, engine domain.NoiseEngine, observer ports.NoiseObserver) *NoiseService {
	return &NoiseService{judgments: judgments, engine: engine, observer: observer}
}

// Variance returns the noise report for decisionID. A decision without
// judgments, or one that does not exist, yields the zero report.
func (s *NoiseService) Variance(ctx context.Context, decisionID int64) (domain.NoiseReport, error) {
	judgments, err := s.judgments.ListJudgments(ctx, decisionID)
	if err != nil {
		return domain.NoiseReport{}, err
	}
	return s.Observe(ctx, decisionID, domain.JudgmentScores(judgments)), nil
}

// Observe runs the engine over scores and notifies the observer.
func (s *NoiseService) Observe(ctx context.Context, decisionID int64, scores []int) domain.NoiseReport {
	start := time.Now()
	report := s.engine.Calculate(scores)
	if s.observer != nil {
		s.observer.ObserveNoise(ctx, decisionID, report, time.Since(start))
	}
	return report
}

// Calculate runs the engine without notifying the observer.
func (s *NoiseService) Calculate(scores []int) domain.NoiseReport {
	return s.engine.Calculate(scores)
}

// Threshold returns the configured high-noise threshold.
func (s *NoiseService) Threshold() float64 {
	return s.engine.Config().HighNoiseThreshold
}
