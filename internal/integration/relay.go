package integration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
)

// Relay drains the outbox and publishes each record to the sink. Records
// are only marked published after the sink accepts them, so a crash mid
// batch replays the unacknowledged tail. Consumers key on the block
// version id, which makes the replay harmless.
type Relay struct {
	store     Store
	sink      Sink
	deduper   Deduper
	logger    *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	batchSize int
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithRelayMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRelayDeduper(d Deduper) RelayOption {
	return func(r *Relay) { r.deduper = d }
}

func NewRelay(store Store, sink Sink, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		sink:      sink,
		deduper:   NopDeduper{},
		logger:    slog.Default(),
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of unpublished records.
func (r *Relay) Drain(ctx context.Context) error {
	records, err := r.store.Unpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.Backlog.Set(float64(len(records)))
	}
	if len(records) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		key := rec.BlockVersionID.String()

		claimed, err := r.deduper.Reserve(ctx, key)
		if err != nil {
			r.logger.WarnContext(ctx, "dedupe reserve failed, publishing anyway",
				"block_version_id", key, "error", err)
			claimed = true
		}
		if !claimed {
			if r.metrics != nil {
				r.metrics.DedupeSkips.Inc()
			}
			continue
		}

		payload, err := EncodeRecord(rec)
		if err != nil {
			r.logger.ErrorContext(ctx, "encode outbox record failed",
				"block_version_id", key, "error", err)
			continue
		}
		if err := r.sink.Publish(ctx, key, payload); err != nil {
			if r.metrics != nil {
				r.metrics.PublishFailures.Inc()
			}
			r.logger.ErrorContext(ctx, "sink publish failed",
				"block_version_id", key, "error", err)
			// Release so a later poll can retry without waiting for the TTL.
			if relErr := r.deduper.Release(ctx, key); relErr != nil {
				r.logger.WarnContext(ctx, "dedupe release failed",
					"block_version_id", key, "error", relErr)
			}
			continue
		}
		published = append(published, rec.ID)
	}

	if len(published) == 0 {
		return nil
	}
	if err := r.store.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.RecordsPublished.Add(float64(len(published)))
	}
	r.logger.InfoContext(ctx, "outbox records published", "count", len(published))
	return nil
}
