// Package storage implements ports.Store in memory and on PostgreSQL.
package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

var _ ports.Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in maps guarded by one lock. It is the
// default backend for development and the backend used in tests.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	seq struct {
		decision, judgment, comment, attachment, audit int64
	}

	decisions   map[int64]domain.Decision
	judgments   map[int64]domain.Judgment
	comments    map[int64]domain.Comment
	attachments map[int64]domain.Attachment
	auditLogs   map[int64]domain.AuditLog
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		decisions:   make(map[int64]domain.Decision),
		judgments:   make(map[int64]domain.Judgment),
		comments:    make(map[int64]domain.Comment),
		attachments: make(map[int64]domain.Attachment),
		auditLogs:   make(map[int64]domain.AuditLog),
	}
}

// next advances a sequence. Callers hold mu for writing.
func next(seq *int64) int64 {
	*seq++
	return *seq
}

func (s *MemoryStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

// sortedValues returns map values oldest first, ties broken by id.
func sortedValues[T any](m map[int64]T, keep func(T) bool, created func(T) time.Time, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		if c := created(a).Compare(created(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
	return out
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}

// ListDecisions returns every decision oldest first.
func (s *MemoryStore) ListDecisions(context.Context) ([]domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.decisions, nil,
		func(d domain.Decision) time.Time { return d.CreatedAt },
		func(d domain.Decision) int64 { return d.ID }), nil
}

// GetDecision returns domain.ErrNotFound for unknown ids.
func (s *MemoryStore) GetDecision(_ context.Context, id int64) (domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	if !ok {
		return domain.Decision{}, domain.ErrNotFound
	}
	return d, nil
}

// CreateDecision assigns an id and fills missing timestamps.
func (s *MemoryStore) CreateDecision(_ context.Context, d domain.Decision) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = next(&s.seq.decision)
	d.CreatedAt = s.stamp(d.CreatedAt)
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	s.decisions[d.ID] = d
	return d, nil
}

// UpdateDecision replaces the stored decision. CreatedAt and AuthorID are
// preserved.
func (s *MemoryStore) UpdateDecision(_ context.Context, d domain.Decision) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.decisions[d.ID]
	if !ok {
		return domain.Decision{}, domain.ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.AuthorID = existing.AuthorID
	d.UpdatedAt = s.stamp(d.UpdatedAt)
	s.decisions[d.ID] = d
	return d, nil
}

// DeleteDecision removes the decision with its judgments, comments and
// attachments. Audit entries are kept.
func (s *MemoryStore) DeleteDecision(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.decisions, id)
	maps.DeleteFunc(s.judgments, func(_ int64, j domain.Judgment) bool { return j.DecisionID == id })
	maps.DeleteFunc(s.comments, func(_ int64, c domain.Comment) bool { return c.DecisionID == id })
	maps.DeleteFunc(s.attachments, func(_ int64, a domain.Attachment) bool { return a.DecisionID == id })
	return nil
}

// CreateJudgment enforces one judgment per user per decision.
func (s *MemoryStore) CreateJudgment(_ context.Context, j domain.Judgment) (domain.Judgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[j.DecisionID]; !ok {
		return domain.Judgment{}, domain.ErrNotFound
	}
	for _, existing := range s.judgments {
		if existing.DecisionID == j.DecisionID && existing.UserID == j.UserID {
			return domain.Judgment{}, domain.ErrDuplicateJudgment
		}
	}
	j.ID = next(&s.seq.judgment)
	j.CreatedAt = s.stamp(j.CreatedAt)
	s.judgments[j.ID] = j
	return j, nil
}

// ListJudgments returns the decision's judgments oldest first.
func (s *MemoryStore) ListJudgments(_ context.Context, decisionID int64) ([]domain.Judgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.judgments,
		func(j domain.Judgment) bool { return j.DecisionID == decisionID },
		func(j domain.Judgment) time.Time { return j.CreatedAt },
		func(j domain.Judgment) int64 { return j.ID }), nil
}

// GetUserJudgment returns domain.ErrNotFound when the user has not judged.
func (s *MemoryStore) GetUserJudgment(_ context.Context, decisionID int64, userID string) (domain.Judgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.judgments {
		if j.DecisionID == decisionID && j.UserID == userID {
			return j, nil
		}
	}
	return domain.Judgment{}, domain.ErrNotFound
}

// CreateComment requires the decision to exist.
func (s *MemoryStore) CreateComment(_ context.Context, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[c.DecisionID]; !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	c.ID = next(&s.seq.comment)
	c.CreatedAt = s.stamp(c.CreatedAt)
	s.comments[c.ID] = c
	return c, nil
}

// ListComments returns the decision's comments oldest first.
func (s *MemoryStore) ListComments(_ context.Context, decisionID int64) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.comments,
		func(c domain.Comment) bool { return c.DecisionID == decisionID },
		func(c domain.Comment) time.Time { return c.CreatedAt },
		func(c domain.Comment) int64 { return c.ID }), nil
}

// CreateAttachment requires the decision to exist.
func (s *MemoryStore) CreateAttachment(_ context.Context, a domain.Attachment) (domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decisions[a.DecisionID]; !ok {
		return domain.Attachment{}, domain.ErrNotFound
	}
	a.ID = next(&s.seq.attachment)
	a.CreatedAt = s.stamp(a.CreatedAt)
	s.attachments[a.ID] = a
	return a, nil
}

// ListAttachments returns the decision's attachments oldest first.
func (s *MemoryStore) ListAttachments(_ context.Context, decisionID int64) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.attachments,
		func(a domain.Attachment) bool { return a.DecisionID == decisionID },
		func(a domain.Attachment) time.Time { return a.CreatedAt },
		func(a domain.Attachment) int64 { return a.ID }), nil
}

// GetAttachment returns domain.ErrNotFound for unknown ids.
func (s *MemoryStore) GetAttachment(_ context.Context, id int64) (domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attachments[id]
	if !ok {
		return domain.Attachment{}, domain.ErrNotFound
	}
	return a, nil
}

// UpdateAttachmentText stores extracted text.
func (s *MemoryStore) UpdateAttachmentText(_ context.Context, id int64, text string) (domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[id]
	if !ok {
		return domain.Attachment{}, domain.ErrNotFound
	}
	a.ExtractedText = &text
	s.attachments[id] = a
	return a, nil
}

// DeleteAttachment returns domain.ErrNotFound for unknown ids.
func (s *MemoryStore) DeleteAttachment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.attachments, id)
	return nil
}

// CreateAuditLog appends an entry. Details are copied.
func (s *MemoryStore) CreateAuditLog(_ context.Context, entry domain.AuditLog) (domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = next(&s.seq.audit)
	entry.CreatedAt = s.stamp(entry.CreatedAt)
	entry.Details = maps.Clone(entry.Details)
	s.auditLogs[entry.ID] = entry
	return entry, nil
}

// ListAuditLogs returns every entry oldest first.
func (s *MemoryStore) ListAuditLogs(context.Context) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.auditLogs, nil,
		func(e domain.AuditLog) time.Time { return e.CreatedAt },
		func(e domain.AuditLog) int64 { return e.ID }), nil
}
