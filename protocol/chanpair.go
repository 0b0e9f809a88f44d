package protocol

import (
	"context"
	"fmt"
	"sync"
)

// ErrBusClosed when sending or receiving on a closed local bus.
var ErrBusClosed = fmt.Errorf("protocol: bus closed")

// LocalBus is the in-process transport: one buffered channel per
// worker for the coordinator->worker direction (FIFO per pair, sends
// block when the buffer is full) and a shared buffered ack channel
// with a non-blocking probe.  Used by unit tests and local mode,
// where all participants are goroutines in one process.
type LocalBus struct {
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	workers map[string]chan interface{}
	acks    chan *AckMsg
}

// NewLocalBus with a channel per named worker.  Depth is the per-pair
// buffer size; small values exercise broadcast backpressure.
func NewLocalBus(workers []string, depth int) *LocalBus {
	if depth < 1 {
		depth = 16
	}
	chans := make(map[string]chan interface{}, len(workers))
	for _, w := range workers {
		chans[w] = make(chan interface{}, depth)
	}
	return &LocalBus{
		done:    make(chan struct{}),
		workers: chans,
		acks:    make(chan *AckMsg, len(workers)*2+4),
	}
}

// Broadcast to every worker as a loop of point sends.  Ordering
// across peers within one round is irrelevant; each peer only
// observes its own channel.
func (b *LocalBus) Broadcast(ctx context.Context, msg interface{}) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}
	for name, ch := range b.workers {
		select {
		case ch <- msg:
		case <-b.done:
			return ErrBusClosed
		case <-ctx.Done():
			return fmt.Errorf("broadcast to %q: %v", name, ctx.Err())
		}
	}
	return nil
}

// ProbeAck is the non-blocking check of the ack channel.
func (b *LocalBus) ProbeAck() (*AckMsg, bool) {
	select {
	case ack := <-b.acks:
		return ack, true
	default:
		return nil, false
	}
}

// Worker returns the named worker's endpoint of the bus.
func (b *LocalBus) Worker(name string) (WorkerBus, error) {
	ch, ok := b.workers[name]
	if !ok {
		return nil, fmt.Errorf("protocol: no channel for worker %q", name)
	}
	return &localWorkerBus{recv: ch, acks: b.acks, done: b.done}, nil
}

// Close the bus.  The worker channels are never closed, shutdown is
// signalled on a separate channel instead, so a broadcast racing a
// close can never hit a closed channel; it unblocks with ErrBusClosed
// and workers see the same on their next receive.
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

type localWorkerBus struct {
	recv <-chan interface{}
	acks chan<- *AckMsg
	done <-chan struct{}
}

func (w *localWorkerBus) Recv(ctx context.Context) (interface{}, error) {
	select {
	case msg := <-w.recv:
		return msg, nil
	case <-w.done:
		return nil, ErrBusClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *localWorkerBus) SendAck(ctx context.Context, msg *AckMsg) error {
	select {
	case w.acks <- msg:
		return nil
	case <-w.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
