package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/kafka"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) published() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func TestTrackKeysCatalogEventsByCopy(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 10, time.Hour)
	id := uuid.New()

	bc.Track(catalog.Event{Type: catalog.EventType, Op: catalog.OpCheckout, CopyID: id})
	bc.Track(map[string]string{"type": "other"})
	bc.Flush(context.Background())

	got := pub.published()
	require.Len(t, got, 2)
	assert.Equal(t, id.String(), got[0].Key)
	assert.Equal(t, "catalog", got[1].Key)
	assert.Zero(t, bc.BufferLen())
}

func TestFlushWhenBatchFull(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 3, time.Hour)
	for i := 0; i < 3; i++ {
		bc.Track(catalog.Event{CopyID: uuid.New()})
	}
	assert.Eventually(t, func() bool { return len(pub.published()) == 3 }, time.Second, 5*time.Millisecond)
}

func TestFailedFlushRequeues(t *testing.T) {
	pub := &fakePublisher{fail: true}
	bc := NewBatchCollector(pub, 2, time.Hour)
	bc.buffer = append(bc.buffer, kafka.Event{Key: "a"}, kafka.Event{Key: "b"})

	bc.Flush(context.Background())
	assert.Equal(t, 2, bc.BufferLen())

	bc.buffer = append(bc.buffer, make([]kafka.Event, 6)...)
	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen(), "keeps at most three batches")
	assert.Equal(t, "a", bc.buffer[0].Key, "oldest events stay at the front")

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()
	bc.Flush(context.Background())
	assert.Zero(t, bc.BufferLen())
	assert.Len(t, pub.published(), 6)
}

func TestStartFlushesOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	bc := NewBatchCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track(catalog.Event{CopyID: uuid.New()})
	cancel()
	bc.Close()
	assert.Len(t, pub.published(), 1)
}

func TestImplementsEventSink(t *testing.T) {
	var _ catalog.EventSink = NewBatchCollector(&fakePublisher{}, 1, time.Second)
}
