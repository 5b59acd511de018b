package event

import (
	"context"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor relays committed outbox entries to the event bus. Entries
// are delivered at least once; handlers are wrapped by IdempotentHandler.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	lease      Lease
	config     OutboxProcessorConfig
	logger     *zap.Logger
	now        func() time.Time

	cancel context.CancelFunc
	group  *errgroup.Group
}

type OutboxProcessorOption func(*OutboxProcessor)

// WithLease restricts relaying to the lease holder
func WithLease(l Lease) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.lease = l }
}

func WithClock(now func() time.Time) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.now = now }
}

func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	opts ...OutboxProcessorOption,
) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultOutboxProcessorConfig().BatchSize
	}
	p := &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the relay loop, and the cleanup loop when enabled, until Stop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group = &errgroup.Group{}

	p.group.Go(func() error {
		every(ctx, p.config.PollInterval, func() {
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox relay failed", zap.Error(err))
			}
		})
		return nil
	})
	if p.config.CleanupEnabled {
		p.group.Go(func() error {
			every(ctx, p.config.CleanupInterval, func() { p.cleanup(ctx) })
			return nil
		})
	}
	return nil
}

// Stop cancels both loops and waits for an in-flight batch, or for ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("Outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// ProcessBatch claims one batch and relays it, returning how many entries
// were marked sent. It is a no-op while another instance holds the lease.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.lease != nil {
		release, ok, err := p.lease.Acquire(ctx)
		if err != nil || !ok {
			return 0, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("Failed to release outbox lease", zap.Error(err))
			}
		}()
	}

	entries, err := p.repo.ClaimBatch(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, entry := range entries {
		if p.relay(ctx, entry) {
			sent++
		}
	}
	return sent, nil
}

func (p *OutboxProcessor) relay(ctx context.Context, entry *shared.OutboxEntry) bool {
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)

	err := p.deliver(ctx, entry)
	if err != nil {
		entry.MarkFailed(err.Error(), p.now())
		log = log.With(
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(err),
		)
		if entry.IsDead() {
			log.Warn("Event moved to dead letter")
		} else {
			log.Error("Event relay failed, will retry", zap.Timep("next_retry_at", entry.NextRetryAt))
		}
	} else {
		entry.MarkSent(p.now())
	}

	if uerr := p.repo.Update(ctx, entry); uerr != nil {
		log.Error("Failed to record outbox delivery state", zap.NamedError("update_error", uerr))
		return false
	}
	if err == nil {
		log.Debug("Event relayed")
	}
	return err == nil
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, event)
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("Outbox cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("Removed sent outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
