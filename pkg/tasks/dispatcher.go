package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"parley/pkg/logger"
	"parley/pkg/models"
)

// Handler processes one dequeued op.
type Handler func(ctx context.Context, op *Op) error

// Dispatcher owns one bounded queue per task kind and the workers that
// drain them. Producers submit typed tasks; consumers register a
// handler per kind before Start.
type Dispatcher struct {
	queues   map[Kind]*Queue
	handlers map[Kind]Handler
	workers  int

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewDispatcher creates queues of the given capacity for every task
// kind, drained by workers goroutines each.
func NewDispatcher(capacity, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		queues:   make(map[Kind]*Queue, 4),
		handlers: make(map[Kind]Handler, 4),
		workers:  workers,
		stop:     make(chan struct{}),
	}
	for _, kind := range []Kind{KindLastMessage, KindAck, KindEmbeds, KindPush} {
		d.queues[kind] = NewQueue(capacity)
	}
	return d
}

// RegisterHandler wires the consumer for one task kind. Kinds without
// a handler discard their ops at dequeue.
func (d *Dispatcher) RegisterHandler(kind Kind, h Handler) {
	d.handlers[kind] = h
}

// Start launches the worker pool. Handlers registered after Start are
// not picked up.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for kind, q := range d.queues {
		h := d.handlers[kind]
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(kind Kind, q *Queue, h Handler) {
				defer d.wg.Done()
				q.RunWorker(d.stop, func(op *Op) error {
					if h == nil {
						return nil
					}
					if err := h(context.Background(), op); err != nil {
						logger.Warn("task_failed", "kind", string(kind), "channel", op.Channel, "id", op.ID, "error", err)
						return err
					}
					return nil
				})
			}(kind, q, h)
		}
	}
	logger.Info("task_dispatcher_started", "kinds", len(d.queues), "workers_per_kind", d.workers)
}

// Stop halts workers and releases queued items.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()
	for _, q := range d.queues {
		q.CloseAndDrain()
	}
}

// Stats is a queue depth snapshot for the telemetry registry.
type Stats struct {
	Len     int
	Cap     int
	Dropped uint64
}

// QueueStats reports per-kind queue depths.
func (d *Dispatcher) QueueStats() map[Kind]Stats {
	out := make(map[Kind]Stats, len(d.queues))
	for kind, q := range d.queues {
		out[kind] = Stats{Len: q.Len(), Cap: q.Cap(), Dropped: q.Dropped()}
	}
	return out
}

func (d *Dispatcher) submit(kind Kind, channel, id string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s task: %w", kind, err)
	}
	q, ok := d.queues[kind]
	if !ok {
		return fmt.Errorf("unknown task kind %q", kind)
	}
	if err := q.TryEnqueue(&Op{Kind: kind, Channel: channel, ID: id, Payload: raw}); err != nil {
		logger.Warn("task_rejected", "kind", string(kind), "channel", channel, "id", id, "error", err)
		return err
	}
	return nil
}

// LastMessageTask advances a channel's last-message pointer.
type LastMessageTask struct {
	Channel    string `json:"channel"`
	Message    string `json:"message"`
	MarkActive bool   `json:"mark_active"`
}

// AckTask advances the author's unread pointer and files pending
// mentions for everyone the message mentioned.
type AckTask struct {
	Channel  string   `json:"channel"`
	Message  string   `json:"message"`
	Author   string   `json:"author"`
	Mentions []string `json:"mentions,omitempty"`
}

// EmbedTask asks the embed consumer to resolve link previews for a
// message's content.
type EmbedTask struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
	Content string `json:"content"`
}

// PushTask hands a message and its notification recipients to the
// notifier.
type PushTask struct {
	Message    models.Message `json:"message"`
	Recipients []string       `json:"recipients"`
}

// EnqueueLastMessage submits a last-message pointer update.
func (d *Dispatcher) EnqueueLastMessage(t LastMessageTask) error {
	return d.submit(KindLastMessage, t.Channel, t.Message, t)
}

// EnqueueAck submits an unread/mention bookkeeping round.
func (d *Dispatcher) EnqueueAck(t AckTask) error {
	return d.submit(KindAck, t.Channel, t.Message, t)
}

// EnqueueEmbeds submits content for link-preview resolution.
func (d *Dispatcher) EnqueueEmbeds(t EmbedTask) error {
	return d.submit(KindEmbeds, t.Channel, t.Message, t)
}

// EnqueuePush submits a notification fan-out.
func (d *Dispatcher) EnqueuePush(t PushTask) error {
	return d.submit(KindPush, t.Message.Channel, t.Message.ID, t)
}
