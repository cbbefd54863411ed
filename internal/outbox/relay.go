package outbox

import (
	"context"
	"time"

	"github.com/richardliu001/shop-ledger/internal/model"
	"go.uber.org/zap"
)

// Store is the part of the repository the relay needs.
type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// Relay moves committed outbox rows to Kafka. Delivery is at least once:
// a row published but not marked is sent again on the next pass.
type Relay struct {
	store Store
	batch int
	log   *zap.SugaredLogger
}

func NewRelay(s Store, batch int, logger *zap.SugaredLogger) *Relay {
	return &Relay{store: s, batch: batch, log: logger}
}

// RunOnce publishes one batch in id order and returns how many rows were marked.
// It stops at the first publish failure so events of one user are never reordered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.store.PublishEvent(ctx, evt); err != nil {
			r.log.Errorf("publish id=%d: %v", evt.ID, err)
			return sent, err
		}
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			r.log.Errorf("mark processed id=%d: %v", evt.ID, err)
			return sent, err
		}
		r.log.Debugf("event %d (%s) sent", evt.ID, evt.EventType)
		sent++
	}
	return sent, nil
}

// Run polls every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				r.log.Warnf("outbox pass stopped after %d events: %v", n, err)
			} else if n > 0 {
				r.log.Infof("outbox pass sent %d events", n)
			}
		}
	}
}
