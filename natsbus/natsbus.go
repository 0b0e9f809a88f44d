// Package natsbus carries the coordination protocol over gnatsd.
// Symbols ride a single broadcast subject every worker subscribes to,
// so fan-out is one logical publish; acks ride a shared ack subject
// the coordinator probes without blocking.  Delivery guarantees are
// the transport collaborator's: gnatsd gives per-pair ordering, which
// is all the protocol assumes.
package natsbus

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	u "github.com/araddon/gou"
	nats "github.com/nats-io/go-nats"

	"github.com/dataux/fsmgrid/protocol"
)

const (
	flushWait = 2 * time.Second
	recvPoll  = 250 * time.Millisecond
)

var (
	_ protocol.CoordinatorBus = (*CoordinatorBus)(nil)
	_ protocol.WorkerBus      = (*WorkerBus)(nil)
)

func symbolSubject(prefix string) string {
	return prefix + ".symbols"
}

func ackSubject(prefix string) string {
	return prefix + ".acks"
}

// CoordinatorBus is the coordinator's endpoint.
type CoordinatorBus struct {
	nc     *nats.Conn
	prefix string
	acks   *nats.Subscription
}

// NewCoordinatorBus subscribing to the ack subject under prefix.
func NewCoordinatorBus(nc *nats.Conn, prefix string) (*CoordinatorBus, error) {
	acks, err := nc.SubscribeSync(ackSubject(prefix))
	if err != nil {
		return nil, fmt.Errorf("natsbus: ack subscribe: %v", err)
	}
	return &CoordinatorBus{nc: nc, prefix: prefix, acks: acks}, nil
}

// Broadcast publishes once to the shared symbol subject; gnatsd fans
// out to every subscribed worker.
func (b *CoordinatorBus) Broadcast(ctx context.Context, msg interface{}) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(symbolSubject(b.prefix), data); err != nil {
		return fmt.Errorf("natsbus: publish: %v", err)
	}
	return b.nc.FlushTimeout(flushWait)
}

// ProbeAck polls the ack subscription without blocking.
func (b *CoordinatorBus) ProbeAck() (*protocol.AckMsg, bool) {
	m, err := b.acks.NextMsg(time.Millisecond)
	if err != nil {
		if err != nats.ErrTimeout {
			u.Warnf("natsbus: ack probe: %v", err)
		}
		return nil, false
	}
	msg, err := decode(m.Data)
	if err != nil {
		u.Warnf("natsbus: undecodable ack payload: %v", err)
		return nil, false
	}
	ack, ok := msg.(*protocol.AckMsg)
	if !ok {
		u.Warnf("natsbus: stray message on ack subject: %T", msg)
		return nil, false
	}
	return ack, true
}

func (b *CoordinatorBus) Close() error {
	return b.acks.Unsubscribe()
}

// WorkerBus is one worker's endpoint.
type WorkerBus struct {
	nc      *nats.Conn
	prefix  string
	name    string
	symbols *nats.Subscription
}

func NewWorkerBus(nc *nats.Conn, prefix, name string) (*WorkerBus, error) {
	symbols, err := nc.SubscribeSync(symbolSubject(prefix))
	if err != nil {
		return nil, fmt.Errorf("natsbus: symbol subscribe: %v", err)
	}
	return &WorkerBus{nc: nc, prefix: prefix, name: name, symbols: symbols}, nil
}

// Recv blocks for the next coordinator message, polling in short
// slices so context cancellation is honored.
func (b *WorkerBus) Recv(ctx context.Context) (interface{}, error) {
	for {
		m, err := b.symbols.NextMsg(recvPoll)
		if err == nats.ErrTimeout {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("natsbus: recv: %v", err)
		}
		return decode(m.Data)
	}
}

func (b *WorkerBus) SendAck(ctx context.Context, msg *protocol.AckMsg) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(ackSubject(b.prefix), data); err != nil {
		return fmt.Errorf("natsbus: ack publish: %v", err)
	}
	return b.nc.FlushTimeout(flushWait)
}

func (b *WorkerBus) Close() error {
	return b.symbols.Unsubscribe()
}

// encode/decode move protocol messages as gob values, normalized back
// to the pointer forms the protocol loops switch on.
func encode(msg interface{}) ([]byte, error) {
	var v interface{}
	switch m := msg.(type) {
	case *protocol.SymbolMsg:
		v = *m
	case *protocol.AckMsg:
		v = *m
	case *protocol.StopMsg:
		v = *m
	default:
		return nil, fmt.Errorf("natsbus: cannot encode %T", msg)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, fmt.Errorf("natsbus: encode: %v", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (interface{}, error) {
	var v interface{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, fmt.Errorf("natsbus: decode: %v", err)
	}
	switch m := v.(type) {
	case protocol.SymbolMsg:
		return &m, nil
	case protocol.AckMsg:
		return &m, nil
	case protocol.StopMsg:
		return &m, nil
	}
	return nil, fmt.Errorf("natsbus: unexpected message %T", v)
}
