package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/richardliu001/shop-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	events    []model.OutboxEvent
	published []uint64
	failOn    uint64
}

func (m *memStore) PollOutbox(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for _, e := range m.events {
		if !e.Processed && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) PublishEvent(_ context.Context, evt model.OutboxEvent) error {
	if evt.ID == m.failOn {
		return errors.New("broker down")
	}
	m.published = append(m.published, evt.ID)
	return nil
}

func (m *memStore) MarkOutboxProcessed(_ context.Context, id uint64) error {
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Processed = true
		}
	}
	return nil
}

func newStore(n int) *memStore {
	s := &memStore{}
	for i := 1; i <= n; i++ {
		s.events = append(s.events, model.OutboxEvent{ID: uint64(i), EventType: "ledger.deposit"})
	}
	return s
}

func TestRelay_RunOnceBatches(t *testing.T) {
	store := newStore(5)
	r := NewRelay(store, 3, zap.NewNop().Sugar())

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, store.published)
}

func TestRelay_StopsAtFailure(t *testing.T) {
	store := newStore(4)
	store.failOn = 3
	r := NewRelay(store, 10, zap.NewNop().Sugar())

	n, err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{1, 2}, store.published)

	store.failOn = 0
	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint64{1, 2, 3, 4}, store.published)
}
