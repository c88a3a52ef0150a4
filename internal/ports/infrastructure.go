// Package ports defines the interfaces the application layer depends on.
// Adapters in the infrastructure tree implement them: storage backends,
// LLM provider clients, metrics sinks and object readers.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/clarvoy/clarvoy/internal/domain"
)

// LLMClient is the contract for a configured chat completion client.
// Implementations must be safe for concurrent use.
type LLMClient interface {
	// Complete sends prompt and returns the response text.
	// Recognised options include "system", "max_tokens", "model" and
	// "temperature"; providers ignore options they do not understand.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteWithUsage is Complete plus input and output token counts.
	CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error)

	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model the client sends requests to.
	GetModel() string
}

// MetricsCollector receives operational measurements.
// Implementations must tolerate unknown metric names.
type MetricsCollector interface {
	// RecordLatency records how long an operation took.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a counter.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a gauge to value.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram observes value in a distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NoiseObserver is notified after each noise calculation.
type NoiseObserver interface {
	ObserveNoise(ctx context.Context, decisionID int64, report domain.NoiseReport, elapsed time.Duration)
}

// DecisionStore persists decisions.
type DecisionStore interface {
	ListDecisions(ctx context.Context) ([]domain.Decision, error)
	GetDecision(ctx context.Context, id int64) (domain.Decision, error)
	CreateDecision(ctx context.Context, d domain.Decision) (domain.Decision, error)
	UpdateDecision(ctx context.Context, d domain.Decision) (domain.Decision, error)
	// DeleteDecision removes the decision and everything attached to it.
	DeleteDecision(ctx context.Context, id int64) error
}

// JudgmentStore persists judgments.
type JudgmentStore interface {
	// CreateJudgment returns domain.ErrDuplicateJudgment when the user has
	// already judged the decision.
	CreateJudgment(ctx context.Context, j domain.Judgment) (domain.Judgment, error)
	ListJudgments(ctx context.Context, decisionID int64) ([]domain.Judgment, error)
	GetUserJudgment(ctx context.Context, decisionID int64, userID string) (domain.Judgment, error)
}

// CommentStore persists debate comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error)
	ListComments(ctx context.Context, decisionID int64) ([]domain.Comment, error)
}

// AttachmentStore persists attachment metadata and extracted text.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a domain.Attachment) (domain.Attachment, error)
	ListAttachments(ctx context.Context, decisionID int64) ([]domain.Attachment, error)
	GetAttachment(ctx context.Context, id int64) (domain.Attachment, error)
	UpdateAttachmentText(ctx context.Context, id int64, text string) (domain.Attachment, error)
	DeleteAttachment(ctx context.Context, id int64) error
}

// AuditStore persists audit entries.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) (domain.AuditLog, error)
	ListAuditLogs(ctx context.Context) ([]domain.AuditLog, error)
}

// Store aggregates every persistence port. Reads that find nothing return
// domain.ErrNotFound; list operations return entities oldest first.
type Store interface {
	DecisionStore
	JudgmentStore
	CommentStore
	AttachmentStore
	AuditStore

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close()
}

// ObjectReader opens uploaded objects for text extraction.
type ObjectReader interface {
	// Open returns a reader for the object at path. Callers close it.
	// A missing object returns domain.ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// TextExtractor pulls plain text out of stored objects for coaching context.
type TextExtractor interface {
	// Supports reports whether text can be extracted from mimeType.
	Supports(mimeType string) bool
	// Extract returns the text of the object at objectPath.
	Extract(ctx context.Context, objectPath, mimeType string) (string, error)
}
