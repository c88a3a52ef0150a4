package domain

import (
	"slices"
	"time"
)

// MaxAttachmentSize is the largest file accepted, in bytes.
const MaxAttachmentSize int64 = 10 * 1024 * 1024

// DefaultAttachmentContext is used when an attachment does not say what it
// belongs to.
const DefaultAttachmentContext = "decision"

// AllowedAttachmentTypes lists the MIME types that may be attached.
var AllowedAttachmentTypes = []string{
	"application/pdf",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/jpg",
	"image/png",
}

// IsAllowedAttachmentType reports whether mimeType is in allowed.
func IsAllowedAttachmentType(allowed []string, mimeType string) bool {
	return slices.Contains(allowed, mimeType)
}

// Attachment is a supporting document for a decision. The file itself lives
// in object storage under ObjectPath; ExtractedText holds any text pulled from
// it for use as coaching context.
type Attachment struct {
	ID            int64     `json:"id"`
	DecisionID    int64     `json:"decisionId"`
	UserID        string    `json:"userId"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	FileSize      int64     `json:"fileSize"`
	ObjectPath    string    `json:"objectPath"`
	ExtractedText *string   `json:"extractedText"`
	Context       string    `json:"context"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasText reports whether the attachment carries non-empty extracted text.
func (a Attachment) HasText() bool {
	return a.ExtractedText != nil && *a.ExtractedText != ""
}

// NewAttachment is the metadata recorded after a file has been uploaded.
type NewAttachment struct {
	FileName   string `json:"fileName" validate:"required"`
	FileType   string `json:"fileType" validate:"required"`
	FileSize   int64  `json:"fileSize" validate:"required,gt=0"`
	ObjectPath string `json:"objectPath" validate:"required"`
	Context    string `json:"context"`
}

// Validate checks that every required field is present.
func (n *NewAttachment) Validate() error {
	if n.Context == "" {
		n.Context = DefaultAttachmentContext
	}
	return structError("attachment", n)
}

// AttachmentText is the projection returned when a client asks for the text
// extracted from one attachment.
type AttachmentText struct {
	ID            int64   `json:"id"`
	FileName      string  `json:"fileName"`
	ExtractedText *string `json:"extractedText"`
}
