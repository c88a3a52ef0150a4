package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// MetricAuditEvents counts audit entries by action.
const MetricAuditEvents = "audit_events_total"

// AuditService records and lists audit entries.
type AuditService struct {
	store   ports.AuditStore
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewAuditService returns a service over store. metrics may be nil.
func NewAuditService(store ports.AuditStore, metrics ports.MetricsCollector, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, metrics: metrics, logger: logger}
}

// Record persists entry. A failure is logged and swallowed so the action
// being audited still succeeds.
func (s *AuditService) Record(ctx context.Context, entry domain.AuditLog) {
	if _, err := s.store.CreateAuditLog(ctx, entry); err != nil {
		logging.FromContext(ctx, s.logger).Warn("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordCounter(MetricAuditEvents, 1, map[string]string{"action": string(entry.Action)})
	}
}

// List returns every entry oldest first.
func (s *AuditService) List(ctx context.Context) ([]domain.AuditLog, error) {
	return s.store.ListAuditLogs(ctx)
}
