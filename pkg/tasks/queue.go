package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Kind names a deferred-work queue fed by the message pipeline.
type Kind string

const (
	// KindLastMessage advances channel last-message pointers.
	KindLastMessage Kind = "last_message"
	// KindAck updates unread pointers and pending mentions.
	KindAck Kind = "ack"
	// KindEmbeds resolves link previews for fresh content.
	KindEmbeds Kind = "embeds"
	// KindPush hands mention notifications to the notifier.
	KindPush Kind = "push"
)

// Op is one unit of deferred work. Payload may be backed by a pooled
// ByteBuffer; consumers receive ops through RunWorker, which returns
// pooled resources after the handler runs.
type Op struct {
	Kind    Kind
	Channel string
	ID      string
	Payload []byte
	// EnqSeq is a monotonic enqueue sequence assigned on acceptance,
	// used for deterministic ordering in diagnostics.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("task queue full")

// Item wraps an Op and owns a pooled ByteBuffer if one was used.
// Done must be called exactly once after processing.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Op != nil {
			it.Op.Payload = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

var opPool = sync.Pool{New: func() any { return &Op{} }}

// maxPooledBuffer caps the buffer size returned to the pool so one
// oversized payload can't pin memory for the process lifetime.
var maxPooledBuffer = 256 * 1024

var enqSeq uint64

// Queue is a bounded in-memory queue. It is safe for concurrent
// producers; consumers run via RunWorker.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

// NewQueue creates a bounded queue. Non-positive capacities fall back
// to 1024.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// TryEnqueue copies op (and its payload into a pooled buffer) and
// enqueues it without blocking. A full queue returns ErrQueueFull.
func (q *Queue) TryEnqueue(op *Op) error {
	it := q.wrap(op)
	select {
	case q.ch <- it:
		return nil
	default:
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	it := q.wrap(op)
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		it.Done()
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

func (q *Queue) wrap(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	newOp.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}
	return &Item{Op: newOp, buf: bb}
}

// RunWorker invokes handler for each dequeued op until stop closes or
// the queue is closed. Item resources are released even when the
// handler errors.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Op) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				_ = handler(it.Op)
			}(it)
		case <-stop:
			return
		}
	}
}

// CloseAndDrain closes the queue and releases any undelivered items.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped counts ops rejected by a full queue or an expired context.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
