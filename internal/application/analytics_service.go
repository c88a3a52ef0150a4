package application

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/clarvoy/clarvoy/internal/domain"
)

const analyticsConcurrency = 8

type analyticsRepository interface {
	ListDecisions(ctx context.Context) ([]domain.Decision, error)
	ListJudgments(ctx context.Context, decisionID int64) ([]domain.Judgment, error)
}

// AnalyticsService aggregates noise for the admin dashboard.
type AnalyticsService struct {
	store analyticsRepository
	noise *NoiseService
}

// NewAnalyticsService returns a service over store.
func NewAnalyticsService(store analyticsRepository, noise *NoiseService) *AnalyticsService {
	return &AnalyticsService{store: store, noise: noise}
}

// NoiseByCategory groups decisions by category, ignoring case, and reports
// how noisy each group's judgments are. MeanStdDev averages only decisions
// that have judgments. Groups are sorted by name.
func (s *AnalyticsService) NoiseByCategory(ctx context.Context) ([]domain.CategoryNoise, error) {
	decisions, err := s.store.ListDecisions(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]domain.NoiseReport, len(decisions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyticsConcurrency)
	for i, d := range decisions {
		g.Go(func() error {
			judgments, err := s.store.ListJudgments(gctx, d.ID)
			if err != nil {
				return err
			}
			reports[i] = s.noise.Calculate(domain.JudgmentScores(judgments))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type group struct {
		noise  domain.CategoryNoise
		sumStd float64
	}
	groups := make(map[string]*group)
	fold := cases.Fold()
	for i, d := range decisions {
		name := strings.TrimSpace(d.Category)
		key := fold.String(name)

		grp, ok := groups[key]
		if !ok {
			grp = &group{noise: domain.CategoryNoise{Category: name}}
			groups[key] = grp
		}
		grp.noise.Decisions++
		if r := reports[i]; r.Count > 0 {
			grp.noise.JudgedDecisions++
			grp.sumStd += r.StdDev
			if r.IsHighNoise {
				grp.noise.HighNoiseDecisions++
			}
		}
	}

	out := make([]domain.CategoryNoise, 0, len(groups))
	for _, grp := range groups {
		if grp.noise.JudgedDecisions > 0 {
			grp.noise.MeanStdDev = grp.sumStd / float64(grp.noise.JudgedDecisions)
		}
		out = append(out, grp.noise)
	}
	slices.SortFunc(out, func(a, b domain.CategoryNoise) int {
		return cmp.Compare(fold.String(a.Category), fold.String(b.Category))
	})
	return out, nil
}
