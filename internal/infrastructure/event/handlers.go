package event

import (
	"context"

	"github.com/mdfe/backend/internal/domain/manifest"
	"github.com/mdfe/backend/internal/domain/shared"
	"github.com/mdfe/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// EventCounter is the metrics sink used by MetricsHandler
type EventCounter interface {
	DomainEvent(eventType string)
	ManifestTransition(status string)
}

// MetricsHandler counts every event and the manifest transitions
type MetricsHandler struct {
	counter EventCounter
}

func NewMetricsHandler(counter EventCounter) *MetricsHandler {
	return &MetricsHandler{counter: counter}
}

func (h *MetricsHandler) Name() string         { return "metrics" }
func (h *MetricsHandler) EventTypes() []string { return nil }

func (h *MetricsHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	h.counter.DomainEvent(evt.EventType())
	if me, ok := evt.(*manifest.ManifestEvent); ok {
		h.counter.ManifestTransition(string(me.Status))
	}
	return nil
}

// AuditLogHandler writes one structured log line per manifest transition
type AuditLogHandler struct {
	logger *zap.Logger
}

func NewAuditLogHandler(log *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: log.Named("audit")}
}

func (h *AuditLogHandler) Name() string { return "audit_log" }

func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		manifest.EventTypeManifestCreated,
		manifest.EventTypeManifestAuthorized,
		manifest.EventTypeManifestRejected,
		manifest.EventTypeManifestCancelled,
		manifest.EventTypeManifestClosed,
		manifest.EventTypeManifestDriverIncluded,
	}
}

func (h *AuditLogHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", evt.EventType()),
		zap.String("manifest_id", evt.AggregateID().String()),
		zap.String("tenant_id", evt.TenantID().String()),
	}
	if me, ok := evt.(*manifest.ManifestEvent); ok {
		fields = append(fields,
			zap.Int("series", me.Series),
			zap.Int("number", me.Number),
			zap.String("status", string(me.Status)),
		)
		if me.AccessKey != "" {
			fields = append(fields, zap.String("access_key", me.AccessKey))
		}
		if me.Protocol != "" {
			fields = append(fields, zap.String("protocol", me.Protocol))
		}
	}
	logger.Enrich(ctx, h.logger).Info("Manifest lifecycle", fields...)
	return nil
}
