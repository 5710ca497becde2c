package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func testConsumer() *Consumer {
	return &Consumer{workers: 1, log: zap.NewNop(), minBackoff: time.Millisecond, maxBackoff: 2 * time.Millisecond}
}

func TestHandleRetriesUntilSuccess(t *testing.T) {
	c := testConsumer()
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis: connection refused")
		}
		return nil
	}
	if err := c.handle(context.Background(), 0, h, kafka.Message{Offset: 7}); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls: %d", calls)
	}
}

func TestHandleStopsWhenContextDone(t *testing.T) {
	c := testConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still down")
	}
	if err := c.handle(ctx, 0, h, kafka.Message{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestWorkerForIsStablePerPartition(t *testing.T) {
	for p := 0; p < 12; p++ {
		w := workerFor(p, 4)
		if w < 0 || w >= 4 || w != workerFor(p, 4) {
			t.Fatalf("partition %d -> worker %d", p, w)
		}
	}
	if workerFor(5, 1) != 0 {
		t.Fatal("single worker owns every partition")
	}
}
