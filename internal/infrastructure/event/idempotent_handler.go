package event

import (
	"context"
	"time"

	"github.com/mdfe/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentHandler runs the wrapped handler at most once per event ID.
// The key includes the handler name so two handlers sharing a store do not
// shadow each other.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// IdempotentOption configures an IdempotentHandler
type IdempotentOption func(*IdempotentHandler)

// WithTTL sets how long processed event IDs are remembered
func WithTTL(ttl time.Duration) IdempotentOption {
	return func(h *IdempotentHandler) {
		h.ttl = ttl
	}
}

func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, log *zap.Logger, opts ...IdempotentOption) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     shared.DefaultIdempotencyTTL,
		logger:  log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) Name() string { return handlerName(h.handler) }

func (h *IdempotentHandler) EventTypes() []string { return h.handler.EventTypes() }

func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	key := "event:" + h.Name() + ":" + evt.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	if err != nil {
		// a lost key is worse than a duplicate
		h.logger.Warn("Idempotency check failed, processing anyway",
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
			zap.Error(err),
		)
	} else if !isNew {
		h.logger.Debug("Duplicate event skipped",
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, evt); err != nil {
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return err
	}
	return nil
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
