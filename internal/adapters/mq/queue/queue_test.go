package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/clink/internal/domain/model"
)

func notice(id string) model.MatchNotice {
	return model.MatchNotice{
		ID:        id,
		Day:       "2024-01-01",
		Initiator: model.PartnerView{ParticipantID: 1001},
		Partner:   model.PartnerView{ParticipantID: 2002},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, notice("n1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "n1" || got.Partner.ParticipantID != 2002 {
		t.Errorf("unexpected notice %+v", got)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, notice("n1")) || !q.Enqueue(ctx, notice("n2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, notice("n3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, notice("n1")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers = 10
	const perProducer = 50

	var received sync.WaitGroup
	received.Add(producers * perProducer)
	out := q.Dequeue(ctx)
	go func() {
		for range out {
			received.Done()
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, notice("n")) {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		received.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notices")
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, notice("n1")) {
		t.Error("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, notice("n2")) {
		t.Error("expected enqueue to fail after closing")
	}

	// queued notices still drain, then the channel closes
	ch := q.Dequeue(ctx)
	timeout := time.After(time.Second)
	var drained []string
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				if len(drained) != 1 || drained[0] != "n1" {
					t.Errorf("expected to drain n1, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, n.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
