package domain

import (
	"strings"
	"time"
)

// Score bounds for a judgment.
const (
	MinScore = 1
	MaxScore = 10
)

// Judgment is one participant's blind score and rationale for a decision.
// Each user may judge a decision once.
type Judgment struct {
	ID         int64     `json:"id"`
	DecisionID int64     `json:"decisionId"`
	UserID     string    `json:"userId"`
	Score      int       `json:"score"`
	Rationale  string    `json:"rationale"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewJudgment is the payload for submitting a judgment.
type NewJudgment struct {
	Score     int    `json:"score" validate:"min=1,max=10"`
	Rationale string `json:"rationale" validate:"required"`
}

// Validate checks the score range and that a rationale was given.
func (n *NewJudgment) Validate() error {
	n.Rationale = strings.TrimSpace(n.Rationale)
	return structError("judgment", n)
}

// Comment is a debate message on a decision.
type Comment struct {
	ID            int64     `json:"id"`
	DecisionID    int64     `json:"decisionId"`
	UserID        string    `json:"userId"`
	Content       string    `json:"content"`
	IsAIGenerated bool      `json:"isAiGenerated"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewComment is the payload for posting a comment.
type NewComment struct {
	Content       string `json:"content" validate:"required,max=10000"`
	IsAIGenerated bool   `json:"isAiGenerated"`
}

// Validate checks that the comment has content.
func (n *NewComment) Validate() error {
	n.Content = strings.TrimSpace(n.Content)
	return structError("comment", n)
}
