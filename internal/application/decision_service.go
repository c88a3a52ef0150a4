package application

import (
	"context"
	"fmt"
	"time"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// DecisionService manages the decision lifecycle.
type DecisionService struct {
	store ports.DecisionStore
	audit *AuditService
	now   func() time.Time
}

// NewDecisionService returns a service over store.
func NewDecisionService(store ports.DecisionStore, audit *AuditService) *DecisionService {
	return &DecisionService{store: store, audit: audit, now: time.Now}
}

// List returns every decision oldest first.
func (s *DecisionService) List(ctx context.Context) ([]domain.Decision, error) {
	return s.store.ListDecisions(ctx)
}

// Get returns one decision or domain.ErrNotFound.
func (s *DecisionService) Get(ctx context.Context, id int64) (domain.Decision, error) {
	return s.store.GetDecision(ctx, id)
}

// Create validates in and stores a decision authored by userID.
func (s *DecisionService) Create(ctx context.Context, userID string, in domain.NewDecision) (domain.Decision, error) {
	if err := in.Validate(); err != nil {
		return domain.Decision{}, err
	}
	d, err := s.store.CreateDecision(ctx, in.Build(userID, s.now().UTC()))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("create decision: %w", err)
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionDecisionCreated, domain.EntityDecision, d.ID,
		map[string]any{"title": d.Title, "category": d.Category}))
	return d, nil
}

// Update applies a partial update. Reaching consensus is audited
// separately from the update itself.
func (s *DecisionService) Update(ctx context.Context, userID string, id int64, in domain.DecisionUpdate) (domain.Decision, error) {
	if err := in.Validate(); err != nil {
		return domain.Decision{}, err
	}
	existing, err := s.store.GetDecision(ctx, id)
	if err != nil {
		return domain.Decision{}, err
	}

	updated, err := s.store.UpdateDecision(ctx, in.Apply(existing, s.now().UTC()))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("update decision: %w", err)
	}

	details := map[string]any{}
	if existing.Status != updated.Status {
		details["from"] = string(existing.Status)
		details["to"] = string(updated.Status)
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionDecisionUpdated, domain.EntityDecision, id, details))

	if !existing.ConsensusReached && updated.ConsensusReached {
		details := map[string]any{}
		if updated.Outcome != nil {
			details["outcome"] = *updated.Outcome
		}
		s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionConsensusReached, domain.EntityDecision, id, details))
	}
	return updated, nil
}

// Delete removes the decision and everything attached to it.
func (s *DecisionService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.store.DeleteDecision(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionDecisionDeleted, domain.EntityDecision, id, nil))
	return nil
}
