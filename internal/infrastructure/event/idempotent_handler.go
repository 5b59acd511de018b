package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyConfig controls duplicate suppression for relayed events
type IdempotencyConfig struct {
	Enabled bool
	// TTL is how long a processed event ID is remembered
	TTL time.Duration
}

// DefaultIdempotencyConfig remembers event IDs for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: 24 * time.Hour}
}

// IdempotencyStats counts what a wrapped handler did with its deliveries
type IdempotencyStats struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler makes an at-least-once outbox delivery effectively once
// for the wrapped handler. Keys are "{name}:{event id}", so two handlers of the
// same event do not mask each other.
type IdempotentHandler struct {
	inner  shared.EventHandler
	store  shared.IdempotencyStore
	logger *zap.Logger
	name   string
	config IdempotencyConfig

	processed, duplicates, failed atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.config = config }
}

// WithHandlerName sets the key prefix; the default is "handler"
func WithHandlerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.name = name }
}

func NewIdempotentHandler(inner shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		inner:  inner,
		store:  store,
		logger: logger,
		name:   "handler",
		config: DefaultIdempotencyConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string { return h.inner.EventTypes() }

// Handle claims the event key before running the inner handler. A store
// failure does not block delivery, and a handler failure releases the key so
// the relay's next attempt is not taken for a duplicate.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.inner.Handle(ctx, event)
	}

	key := h.name + ":" + event.EventID().String()
	log := h.logger.With(
		zap.String("handler", h.name),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	fresh, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		log.Warn("idempotency store unavailable, delivering anyway", zap.Error(err))
	case !fresh:
		h.duplicates.Add(1)
		log.Debug("duplicate event skipped")
		return nil
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			log.Warn("could not release idempotency key", zap.Error(ferr))
		}
		return err
	}
	h.processed.Add(1)
	return nil
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed:  h.processed.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
