package domain

import (
	"strings"
	"time"
)

// DecisionStatus is the lifecycle stage of a decision.
type DecisionStatus string

// Decision statuses. A new decision starts as a draft.
const (
	StatusDraft    DecisionStatus = "draft"
	StatusOpen     DecisionStatus = "open"
	StatusClosed   DecisionStatus = "closed"
	StatusArchived DecisionStatus = "archived"
)

// AcceptsJudgments reports whether participants may still submit scores.
func (s DecisionStatus) AcceptsJudgments() bool {
	return s == StatusDraft || s == StatusOpen
}

// Concluded reports whether the decision is closed or archived. Blind
// judgments become visible to everyone once a decision is concluded.
func (s DecisionStatus) Concluded() bool {
	return s == StatusClosed || s == StatusArchived
}

// Decision is a case under evaluation. Judgments, comments and attachments
// hang off it and are removed with it.
type Decision struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	Status           DecisionStatus `json:"status"`
	Deadline         *time.Time     `json:"deadline"`
	AuthorID         *string        `json:"authorId"`
	ConsensusReached bool           `json:"consensusReached"`
	Outcome          *string        `json:"outcome"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// IsAuthor reports whether userID created the decision.
func (d Decision) IsAuthor(userID string) bool {
	return d.AuthorID != nil && *d.AuthorID == userID
}

// NewDecision is the payload for creating a decision.
type NewDecision struct {
	Title       string         `json:"title" validate:"required,max=500"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required,max=100"`
	Status      DecisionStatus `json:"status" validate:"omitempty,oneof=draft open closed archived"`
	Deadline    *time.Time     `json:"deadline"`
}

// Validate trims the text fields and checks the payload.
func (n *NewDecision) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	n.Category = strings.TrimSpace(n.Category)
	return structError("decision", n)
}

// Build turns the payload into a decision owned by authorID. Status defaults
// to draft.
func (n NewDecision) Build(authorID string, now time.Time) Decision {
	status := n.Status
	if status == "" {
		status = StatusDraft
	}
	d := Decision{
		Title:       n.Title,
		Description: n.Description,
		Category:    n.Category,
		Status:      status,
		Deadline:    n.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if authorID != "" {
		d.AuthorID = &authorID
	}
	return d
}

// DecisionUpdate is a partial update. Nil fields are left unchanged.
type DecisionUpdate struct {
	Title            *string         `json:"title" validate:"omitempty,min=1,max=500"`
	Description      *string         `json:"description" validate:"omitempty,min=1"`
	Category         *string         `json:"category" validate:"omitempty,min=1,max=100"`
	Status           *DecisionStatus `json:"status" validate:"omitempty,oneof=draft open closed archived"`
	Deadline         *time.Time      `json:"deadline"`
	ConsensusReached *bool           `json:"consensusReached"`
	Outcome          *string         `json:"outcome"`
}

// Validate checks the fields that are present.
func (u *DecisionUpdate) Validate() error {
	return structError("decision", u)
}

// Empty reports whether the update changes nothing.
func (u DecisionUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.Status == nil && u.Deadline == nil && u.ConsensusReached == nil && u.Outcome == nil
}

// Apply copies the present fields onto d and stamps UpdatedAt.
func (u DecisionUpdate) Apply(d Decision, now time.Time) Decision {
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.Category != nil {
		d.Category = *u.Category
	}
	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.Deadline != nil {
		d.Deadline = u.Deadline
	}
	if u.ConsensusReached != nil {
		d.ConsensusReached = *u.ConsensusReached
	}
	if u.Outcome != nil {
		d.Outcome = u.Outcome
	}
	d.UpdatedAt = now
	return d
}
