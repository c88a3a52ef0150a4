package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// CommentService hosts the debate thread of each decision.
type CommentService struct {
	store ports.CommentStore
	audit *AuditService
	now   func() time.Time
}

// NewCommentService returns a service over store.
func NewCommentService(store ports.CommentStore, audit *AuditService) *CommentService {
	return &CommentService{store: store, audit: audit, now: time.Now}
}

// Post adds userID's comment to decisionID.
func (s *CommentService) Post(ctx context.Context, userID string, decisionID int64, in domain.NewComment) (domain.Comment, error) {
	if err := in.Validate(); err != nil {
		return domain.Comment{}, err
	}
	c, err := s.store.CreateComment(ctx, domain.Comment{
		DecisionID:    decisionID,
		UserID:        userID,
		Content:       in.Content,
		IsAIGenerated: in.IsAIGenerated,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Comment{}, err
		}
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionCommentPosted, domain.EntityComment, c.ID,
		map[string]any{"decisionId": decisionID, "aiGenerated": c.IsAIGenerated}))
	return c, nil
}

// List returns the thread oldest first.
func (s *CommentService) List(ctx context.Context, decisionID int64) ([]domain.Comment, error) {
	return s.store.ListComments(ctx, decisionID)
}
