package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
)

type judgmentRepository interface {
	ports.DecisionStore
	ports.JudgmentStore
}

// submitStripes is the number of locks decisions are hashed onto.
const submitStripes = 64

// JudgmentService accepts blind judgments and controls who may see them.
type JudgmentService struct {
	store  judgmentRepository
	noise  *NoiseService
	audit  *AuditService
	logger *zap.Logger
	now    func() time.Time

	// submits serializes submissions per decision so each one sees the
	// noise level left by the previous one.
	submits [submitStripes]sync.Mutex
}

// NewJudgmentService returns a service over store.
func NewJudgmentService(store judgmentRepository, noise *NoiseService, audit *AuditService, logger *zap.Logger) *JudgmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JudgmentService{store: store, noise: noise, audit: audit, logger: logger, now: time.Now}
}

// Submit stores userID's judgment on decisionID. Each user judges a
// decision once, and only while it accepts judgments. When the new score
// pushes the decision into high noise a BIAS_ALERT entry is written.
func (s *JudgmentService) Submit(ctx context.Context, userID string, decisionID int64, in domain.NewJudgment) (domain.Judgment, error) {
	if err := in.Validate(); err != nil {
		return domain.Judgment{}, err
	}

	decision, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		return domain.Judgment{}, err
	}
	if !decision.Status.AcceptsJudgments() {
		return domain.Judgment{}, fmt.Errorf("decision %d is %s: %w", decisionID, decision.Status, domain.ErrDecisionClosed)
	}

	mu := &s.submits[uint64(decisionID)%submitStripes]
	mu.Lock()
	defer mu.Unlock()

	prior, err := s.store.ListJudgments(ctx, decisionID)
	if err != nil {
		return domain.Judgment{}, err
	}
	for _, j := range prior {
		if j.UserID == userID {
			return domain.Judgment{}, domain.ErrDuplicateJudgment
		}
	}

	judgment, err := s.store.CreateJudgment(ctx, domain.Judgment{
		DecisionID: decisionID,
		UserID:     userID,
		Score:      in.Score,
		Rationale:  in.Rationale,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateJudgment) || errors.Is(err, domain.ErrNotFound) {
			return domain.Judgment{}, err
		}
		return domain.Judgment{}, fmt.Errorf("create judgment: %w", err)
	}

	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionJudgmentSubmitted, domain.EntityJudgment, judgment.ID,
		map[string]any{"decisionId": decisionID, "score": judgment.Score}))

	s.checkNoise(ctx, decisionID, judgment)
	return judgment, nil
}

// checkNoise writes a BIAS_ALERT when judgment moved the decision into high
// noise. Both reports are taken from the stored judgments after the insert,
// not from the snapshot read before it.
func (s *JudgmentService) checkNoise(ctx context.Context, decisionID int64, judgment domain.Judgment) {
	stored, err := s.store.ListJudgments(ctx, decisionID)
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("noise check skipped",
			zap.Int64("decision_id", decisionID), zap.Error(err))
		return
	}
	others := make([]domain.Judgment, 0, len(stored))
	for _, j := range stored {
		if j.ID != judgment.ID {
			others = append(others, j)
		}
	}

	before := s.noise.Calculate(domain.JudgmentScores(others))
	after := s.noise.Observe(ctx, decisionID, domain.JudgmentScores(stored))
	if after.IsHighNoise && !before.IsHighNoise {
		logging.FromContext(ctx, s.logger).Info("decision entered high noise",
			zap.Int64("decision_id", decisionID),
			zap.Float64("std_dev", after.StdDev),
			zap.Int("count", after.Count),
		)
		s.audit.Record(ctx, domain.NewAuditLog("", domain.ActionBiasAlert, domain.EntityDecision, decisionID,
			map[string]any{
				"count":     after.Count,
				"mean":      after.Mean,
				"stdDev":    after.StdDev,
				"threshold": s.noise.Threshold(),
			}))
	}
}

// List returns the judgments on decisionID that userID may see. Judgments
// stay blind until the caller has submitted their own; the author and
// everyone after the decision concludes see them all.
func (s *JudgmentService) List(ctx context.Context, userID string, decisionID int64) ([]domain.Judgment, error) {
	decision, err := s.store.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	judgments, err := s.store.ListJudgments(ctx, decisionID)
	if err != nil {
		return nil, err
	}
	if decision.Status.Concluded() || decision.IsAuthor(userID) {
		return judgments, nil
	}
	for _, j := range judgments {
		if j.UserID == userID {
			return judgments, nil
		}
	}
	return []domain.Judgment{}, nil
}
