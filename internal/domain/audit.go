package domain

import "time"

// AuditAction names something that happened to an entity.
type AuditAction string

// Audit actions recorded by the services.
const (
	ActionDecisionCreated   AuditAction = "DECISION_CREATED"
	ActionDecisionUpdated   AuditAction = "DECISION_UPDATED"
	ActionDecisionDeleted   AuditAction = "DECISION_DELETED"
	ActionJudgmentSubmitted AuditAction = "JUDGMENT_SUBMITTED"
	ActionCommentPosted     AuditAction = "COMMENT_POSTED"
	ActionAttachmentAdded   AuditAction = "ATTACHMENT_ADDED"
	ActionAttachmentDeleted AuditAction = "ATTACHMENT_DELETED"
	ActionConsensusReached  AuditAction = "CONSENSUS_REACHED"
	// ActionBiasAlert marks a decision whose judgments crossed the high-noise
	// threshold.
	ActionBiasAlert AuditAction = "BIAS_ALERT"
)

// Entity types referenced by audit entries.
const (
	EntityDecision   = "decision"
	EntityJudgment   = "judgment"
	EntityComment    = "comment"
	EntityAttachment = "attachment"
)

// AuditLog is an append-only record for the admin dashboard.
type AuditLog struct {
	ID         int64          `json:"id"`
	UserID     *string        `json:"userId"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   *int64         `json:"entityId"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewAuditLog builds an entry. An empty userID records a system action.
func NewAuditLog(userID string, action AuditAction, entityType string, entityID int64, details map[string]any) AuditLog {
	entry := AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		Details:    details,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return entry
}

// CategoryNoise aggregates noise across the decisions of one category.
type CategoryNoise struct {
	Category           string  `json:"category"`
	Decisions          int     `json:"decisions"`
	JudgedDecisions    int     `json:"judgedDecisions"`
	HighNoiseDecisions int     `json:"highNoiseDecisions"`
	MeanStdDev         float64 `json:"meanStdDev"`
}
