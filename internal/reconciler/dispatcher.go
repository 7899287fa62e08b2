package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/mbeoliero/convsync/internal/entity"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/convsync/pkg/idgen"
	"github.com/mbeoliero/kit/log"
)

// Applier reconciles one event
type Applier interface {
	Apply(ctx context.Context, ev entity.Event) error
}

// task is one queued event
type task struct {
	opId string
	ev   entity.Event
	done chan error // nil for fire-and-forget submissions
}

// Dispatcher fans events out to worker goroutines. Events for the same conversation
// always land on the same worker, so they are applied one at a time in arrival order.
// Global events (presence snapshots) go to worker 0.
type Dispatcher struct {
	applier Applier
	idGen   idgen.IDGenerator
	shards  []chan *task
	running atomic.Bool

	applied atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher creates a Dispatcher with workerNum shards, each buffering queueSize events
func NewDispatcher(applier Applier, workerNum, queueSize int, idGen idgen.IDGenerator) *Dispatcher {
	if workerNum <= 0 {
		workerNum = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	shards := make([]chan *task, workerNum)
	for i := range shards {
		shards[i] = make(chan *task, queueSize)
	}

	return &Dispatcher{
		applier: applier,
		idGen:   idGen,
		shards:  shards,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker has exited
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already running")
	}
	defer d.running.Store(false)

	var wg sync.WaitGroup
	for i, ch := range d.shards {
		wg.Add(1)
		go func(shard int, ch chan *task) {
			defer wg.Done()
			d.workLoop(ctx, shard, ch)
		}(i, ch)
	}
	log.CtxInfo(ctx, "started %d dispatcher workers", len(d.shards))

	wg.Wait()
	log.CtxInfo(ctx, "dispatcher stopped: applied=%d, dropped=%d", d.applied.Load(), d.dropped.Load())
	return nil
}

// Submit queues an event without waiting for it to be applied.
// It blocks while the shard queue is full, until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, ev entity.Event) error {
	_, err := d.enqueue(ctx, ev, nil)
	return err
}

// Apply queues an event and waits for the reconciliation result
func (d *Dispatcher) Apply(ctx context.Context, ev entity.Event) error {
	done := make(chan error, 1)
	if _, err := d.enqueue(ctx, ev, done); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns how many events were applied and how many were dropped
func (d *Dispatcher) Stats() (applied, dropped int64) {
	return d.applied.Load(), d.dropped.Load()
}

func (d *Dispatcher) enqueue(ctx context.Context, ev entity.Event, done chan error) (string, error) {
	if entity.IsNil(ev) {
		return "", errcode.ErrInvalidEvent
	}

	opId, err := d.idGen.NextID()
	if err != nil {
		return "", errcode.ErrInternalServer.Wrap(err)
	}

	t := &task{opId: opId, ev: ev, done: done}
	select {
	case d.shards[d.shardFor(ev)] <- t:
		return opId, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) shardFor(ev entity.Event) int {
	id := ev.ConversationId()
	if id == "" {
		return 0
	}
	return int(xxhash.Sum64String(id) % uint64(len(d.shards)))
}

func (d *Dispatcher) workLoop(ctx context.Context, shard int, ch chan *task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ch:
			d.process(ctx, shard, t)
		}
	}
}

// process applies one task; a panicking applier drops the event, never the worker
func (d *Dispatcher) process(ctx context.Context, shard int, t *task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(ctx, "dispatcher recovered from panic: shard=%d, op_id=%s, event=%s, panic=%v",
				shard, t.opId, entity.EventName(t.ev), r)
			err = errcode.ErrInternalServer
		}
		if err != nil {
			d.dropped.Add(1)
		} else {
			d.applied.Add(1)
		}
		if t.done != nil {
			t.done <- err
		}
	}()

	err = d.applier.Apply(ctx, t.ev)
	if err != nil {
		log.CtxDebug(ctx, "event dropped: shard=%d, op_id=%s, event=%s, conversation_id=%s, error=%v",
			shard, t.opId, entity.EventName(t.ev), t.ev.ConversationId(), err)
	}
}
