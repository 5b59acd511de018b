package event

import (
	"context"

	"github.com/erp/stockcore/internal/domain/shared"
	"go.uber.org/zap"
)

type actorCarrier interface {
	EventActor() string
}

// AuditLogHandler writes one structured log line per relayed ledger event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler logging under the "audit" name
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes subscribes to every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event envelope
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("branch_id", event.BranchID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if a, ok := event.(actorCarrier); ok && a.EventActor() != "" {
		fields = append(fields, zap.String("actor", a.EventActor()))
	}
	h.logger.Info("ledger event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
