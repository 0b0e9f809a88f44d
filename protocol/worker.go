package protocol

import (
	"context"
	"fmt"

	u "github.com/araddon/gou"

	"github.com/dataux/fsmgrid/fsm"
)

// Worker owns one automaton cursor.  It consumes symbol messages from
// the coordinator, applies the guarded transition, and on reaching
// the accepting state emits exactly one ack and stops consuming.
type Worker struct {
	name    string
	bus     WorkerBus
	msgSize int
	state   fsm.State
	acked   bool
}

// NewWorker starting at the initial state.
func NewWorker(name string, bus WorkerBus, msgSize int) *Worker {
	if msgSize < 1 {
		msgSize = 1
	}
	return &Worker{name: name, bus: bus, msgSize: msgSize, state: fsm.Start}
}

// State of the automaton cursor.
func (w *Worker) State() fsm.State {
	return w.state
}

// Acked reports whether the single acknowledgment has been sent.
func (w *Worker) Acked() bool {
	return w.acked
}

// Run the receive-transition loop.  Returns the final automaton state
// and any fatal error: a failed receive or send is a transport
// failure, a malformed payload a protocol violation; neither has a
// recovery path at this layer.
func (w *Worker) Run(ctx context.Context) (fsm.State, error) {
	for {
		msg, err := w.bus.Recv(ctx)
		if err != nil {
			return w.state, err
		}
		switch m := msg.(type) {
		case *SymbolMsg:
			sym, err := m.Symbol()
			if err != nil {
				return w.state, err
			}
			prev := w.state
			w.state = fsm.Advance(w.state, sym)
			if w.state != prev {
				u.Debugf("%s got %v, now in state %v", w.name, sym, w.state)
			}
			if fsm.Accepting(w.state) && !w.acked {
				if err := w.bus.SendAck(ctx, NewAckMsg(w.name, w.msgSize)); err != nil {
					return w.state, err
				}
				w.acked = true
				u.Infof("%s reached final state %v, acked", w.name, w.state)
				return w.state, w.drain(ctx)
			}
		case *StopMsg:
			u.Debugf("%s stopped by %s in state %v", w.name, m.From, w.state)
			return w.state, nil
		default:
			return w.state, fmt.Errorf("protocol: %s got unexpected message %T", w.name, msg)
		}
	}
}

// drain discards in-flight symbols after acceptance until the Stop
// poison arrives, keeping the coordinator's blocking broadcast sends
// from wedging on our abandoned channel.  The automaton is already in
// its absorbing state; nothing here is processed.
func (w *Worker) drain(ctx context.Context) error {
	n := 0
	for {
		msg, err := w.bus.Recv(ctx)
		if err != nil {
			// Already accepted and acked; a closing transport is a
			// normal way for the run to end.
			u.Debugf("%s drain ended after %d msgs: %v", w.name, n, err)
			return nil
		}
		if _, ok := msg.(*StopMsg); ok {
			u.Debugf("%s drained %d msgs, shutting down", w.name, n)
			return nil
		}
		n++
	}
}
