package cluster

import (
	"context"
	"fmt"
	"time"

	u "github.com/araddon/gou"
	"github.com/lytics/grid"
	"github.com/lytics/retry"

	"github.com/dataux/fsmgrid/protocol"
)

// gridBus is the coordinator's side of the transport over grid
// mailboxes: a logical broadcast as a loop of point requests (the
// registry decides physical placement), and a non-blocking probe of
// the coordinator's ack mailbox.
type gridBus struct {
	client  *grid.Client
	workers []string
	mbox    *grid.Mailbox
}

func (b *gridBus) Broadcast(ctx context.Context, msg interface{}) error {
	wire, err := toWire(msg)
	if err != nil {
		return err
	}
	_, poison := msg.(*protocol.StopMsg)
	for _, w := range b.workers {
		var err error
		retry.X(3, 500*time.Millisecond, func() bool {
			_, err = b.client.RequestC(ctx, w, wire)
			return err != nil && ctx.Err() == nil
		})
		if err != nil {
			if poison {
				// The worker may already be gone; poison is best effort.
				u.Debugf("stop not delivered to %v: %v", w, err)
				continue
			}
			return fmt.Errorf("send to %v: %v", w, err)
		}
	}
	return nil
}

func (b *gridBus) ProbeAck() (*protocol.AckMsg, bool) {
	select {
	case req, ok := <-b.mbox.C:
		if !ok {
			return nil, false
		}
		ack, isAck := fromWire(req.Msg()).(*protocol.AckMsg)
		// Receipt is acknowledged either way so the sender unblocks;
		// whether it counts is the completion set's call.
		if err := req.Ack(); err != nil {
			u.Warnf("could not ack request: %v", err)
		}
		if !isAck {
			u.Warnf("stray message on ack mailbox: %T", req.Msg())
			return nil, false
		}
		return ack, true
	default:
		return nil, false
	}
}

// gridWorkerBus is a worker's endpoint: its own mailbox for inbound
// symbols, point requests to the coordinator's ack mailbox.
type gridWorkerBus struct {
	client      *grid.Client
	mbox        *grid.Mailbox
	coordinator string
}

func (b *gridWorkerBus) Recv(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case req, ok := <-b.mbox.C:
		if !ok {
			return nil, protocol.ErrBusClosed
		}
		if err := req.Ack(); err != nil {
			return nil, err
		}
		return fromWire(req.Msg()), nil
	}
}

func (b *gridWorkerBus) SendAck(ctx context.Context, msg *protocol.AckMsg) error {
	wire, err := toWire(msg)
	if err != nil {
		return err
	}
	retry.X(3, 500*time.Millisecond, func() bool {
		_, err = b.client.RequestC(ctx, b.coordinator, wire)
		return err != nil && ctx.Err() == nil
	})
	return err
}
