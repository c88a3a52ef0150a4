package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// MsgMissingAttachmentFields is reported when attachment metadata is
// incomplete.
const MsgMissingAttachmentFields = "Missing required attachment fields"

type attachmentRepository interface {
	ports.DecisionStore
	ports.AttachmentStore
}

// AttachmentService records uploaded documents and extracts their text for
// coaching context.
type AttachmentService struct {
	store     attachmentRepository
	extractor ports.TextExtractor
	audit     *AuditService
	cfg       AttachmentsConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttachmentService returns a service over store. extractor may be nil,
// in which case no text is extracted.
func NewAttachmentService(store attachmentRepository, extractor ports.TextExtractor, audit *AuditService, cfg AttachmentsConfig, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = domain.MaxAttachmentSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = domain.AllowedAttachmentTypes
	}
	return &AttachmentService{store: store, extractor: extractor, audit: audit, cfg: cfg, logger: logger, now: time.Now}
}

// Add records an uploaded file against decisionID. Text extraction is best
// effort: a failure is logged and the attachment is stored without text.
func (s *AttachmentService) Add(ctx context.Context, userID string, decisionID int64, in domain.NewAttachment) (domain.Attachment, error) {
	if _, err := s.store.GetDecision(ctx, decisionID); err != nil {
		return domain.Attachment{}, err
	}

	if err := in.Validate(); err != nil {
		verr := domain.NewValidationError("attachment")
		verr.AddError(MsgMissingAttachmentFields)
		return domain.Attachment{}, verr
	}
	if !domain.IsAllowedAttachmentType(s.cfg.AllowedTypes, in.FileType) {
		return domain.Attachment{}, fmt.Errorf("%s: %w", in.FileType, domain.ErrUnsupportedFileType)
	}
	if in.FileSize > s.cfg.MaxSize {
		return domain.Attachment{}, fmt.Errorf("%d bytes: %w", in.FileSize, domain.ErrFileTooLarge)
	}

	a := domain.Attachment{
		DecisionID: decisionID,
		UserID:     userID,
		FileName:   in.FileName,
		FileType:   in.FileType,
		FileSize:   in.FileSize,
		ObjectPath: in.ObjectPath,
		Context:    in.Context,
		CreatedAt:  s.now().UTC(),
	}
	if text, ok := s.extract(ctx, in); ok {
		a.ExtractedText = &text
	}

	created, err := s.store.CreateAttachment(ctx, a)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Attachment{}, err
		}
		return domain.Attachment{}, fmt.Errorf("create attachment: %w", err)
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionAttachmentAdded, domain.EntityAttachment, created.ID,
		map[string]any{"decisionId": decisionID, "fileName": created.FileName, "fileType": created.FileType}))
	return created, nil
}

func (s *AttachmentService) extract(ctx context.Context, in domain.NewAttachment) (string, bool) {
	if s.extractor == nil || !s.extractor.Supports(in.FileType) {
		return "", false
	}
	text, err := s.extractor.Extract(ctx, in.ObjectPath, in.FileType)
	if err != nil {
		logging.FromContext(ctx, s.logger).Warn("text extraction failed",
			zap.String("object_path", in.ObjectPath),
			zap.String("file_type", in.FileType),
			zap.Error(err),
		)
		return "", false
	}
	return text, text != ""
}

// List returns the attachments of decisionID oldest first.
func (s *AttachmentService) List(ctx context.Context, decisionID int64) ([]domain.Attachment, error) {
	return s.store.ListAttachments(ctx, decisionID)
}

// Text returns the extracted text of one attachment.
func (s *AttachmentService) Text(ctx context.Context, id int64) (domain.AttachmentText, error) {
	a, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return domain.AttachmentText{}, err
	}
	return domain.AttachmentText{ID: a.ID, FileName: a.FileName, ExtractedText: a.ExtractedText}, nil
}

// Delete removes one attachment's metadata. The object itself is left in
// storage.
func (s *AttachmentService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.store.DeleteAttachment(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, domain.NewAuditLog(userID, domain.ActionAttachmentDeleted, domain.EntityAttachment, id, nil))
	return nil
}
