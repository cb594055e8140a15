package tasks

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryEnqueueCopiesPayload(t *testing.T) {
	q := NewQueue(4)
	payload := []byte(`{"channel":"c1"}`)
	if err := q.TryEnqueue(&Op{Kind: KindAck, Channel: "c1", ID: "m1", Payload: payload}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// mutating the caller's slice must not reach the queued copy
	payload[2] = 'X'

	it := <-q.ch
	defer it.Done()
	if string(it.Op.Payload) != `{"channel":"c1"}` {
		t.Fatalf("payload not copied: %s", it.Op.Payload)
	}
	if it.Op.EnqSeq == 0 {
		t.Fatal("enqueue sequence not assigned")
	}
}

func TestTryEnqueueFullQueue(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue(&Op{Kind: KindPush, ID: "a"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.TryEnqueue(&Op{Kind: KindPush, ID: "b"}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", q.Dropped())
	}
}

func TestEnqueueHonorsContext(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue(&Op{Kind: KindEmbeds, ID: "a"}); err != nil {
		t.Fatalf("fill queue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, &Op{Kind: KindEmbeds, ID: "b"}); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunWorkerProcessesUntilStop(t *testing.T) {
	q := NewQueue(8)
	stop := make(chan struct{})
	var mu sync.Mutex
	var seen []string

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.RunWorker(stop, func(op *Op) error {
			mu.Lock()
			seen = append(seen, op.ID)
			mu.Unlock()
			return nil
		})
	}()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.TryEnqueue(&Op{Kind: KindAck, ID: id}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker processed %d of 3 ops", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
	close(stop)
	wg.Wait()
}

func TestCloseAndDrainReleasesItems(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		if err := q.TryEnqueue(&Op{Kind: KindPush, ID: "x", Payload: []byte("p")}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.CloseAndDrain()
	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d", q.Len())
	}
}
