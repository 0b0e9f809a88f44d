package cluster

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/lytics/grid/codec"
	"github.com/stretchr/testify/assert"

	"github.com/dataux/fsmgrid/fsm"
	"github.com/dataux/fsmgrid/protocol"
)

func TestPeerListIds(t *testing.T) {
	p := newPeerList()
	assert.Equal(t, 1, p.NextId())

	a := &peerEntry{name: "host-a", id: p.NextId()}
	p.Add(a)
	b := &peerEntry{name: "host-b", id: p.NextId()}
	p.Add(b)
	assert.Equal(t, 1, a.id)
	assert.Equal(t, 2, b.id)
	assert.Equal(t, 2, p.Len())

	// Ids stay stable and ordered across churn: a rejoining peer
	// gets a fresh id, never a recycled one.
	p.Remove(a)
	assert.Equal(t, 1, p.Len())
	c := &peerEntry{name: "host-a", id: p.NextId()}
	p.Add(c)
	assert.Equal(t, 3, c.id)
}

func TestConfClone(t *testing.T) {
	c := &Conf{
		GridName:    "fsmgrid",
		EtcdServers: []string{"http://127.0.0.1:2379"},
		WorkerCt:    3,
		Policy:      protocol.FixedRounds,
		Rounds:      50,
	}
	c2 := c.Clone()
	assert.Equal(t, c.WorkerCt, c2.WorkerCt)
	assert.Equal(t, c.Policy, c2.Policy)
	c2.EtcdServers[0] = "changed"
	assert.Equal(t, "http://127.0.0.1:2379", c.EtcdServers[0])
}

func TestFlowNames(t *testing.T) {
	f := NewFlow(42)
	assert.Equal(t, "run-42", f.Name())
	assert.Equal(t, "run-42-acks", f.NewContextualName("acks"))
}

// The envelopes must survive the actual grid codec, not just the
// proto marshaller: registration happens in this package's init, so a
// type the codec rejects would already have failed the process, and a
// type it cannot round-trip fails here.
func TestWireCodecRoundTrip(t *testing.T) {
	msgs := []interface{}{
		protocol.NewSymbolMsg("run-1-acks", fsm.B, 3),
		protocol.NewAckMsg("worker-2", 3),
		&protocol.StopMsg{From: "run-1-acks"},
	}
	for _, msg := range msgs {
		wire, err := toWire(msg)
		assert.Equal(t, nil, err)

		name, buf, err := codec.Marshal(wire)
		assert.Equal(t, nil, err, "%T", wire)

		back, err := codec.Unmarshal(buf, name)
		assert.Equal(t, nil, err, "%T", wire)
		assert.Equal(t, msg, fromWire(back), "%T", wire)
	}
}

func TestWireEnvelopes(t *testing.T) {
	// Compile-level and runtime checks that the envelopes satisfy the
	// codec's contract.
	var _ proto.Message = &SymbolDelivery{}

	in := &SymbolDelivery{From: "run-7-acks", Block: []int32{1, 1, 1}}
	buf, err := proto.Marshal(in)
	assert.Equal(t, nil, err)
	out := &SymbolDelivery{}
	assert.Equal(t, nil, proto.Unmarshal(buf, out))
	assert.Equal(t, in.From, out.From)
	assert.Equal(t, in.Block, out.Block)

	// Only protocol messages have envelopes.
	_, err = toWire("nonsense")
	assert.NotEqual(t, nil, err)

	// Unknown inbound types pass through for the caller to judge.
	assert.Equal(t, "nonsense", fromWire("nonsense"))
}

func TestNewServerDefaultConf(t *testing.T) {
	s := NewServer(nil)
	assert.Equal(t, GridConf.GridName, s.Conf.GridName)
	assert.Equal(t, GridConf.MsgSize, s.Conf.MsgSize)
	assert.NotEqual(t, "", s.Conf.Hostname)

	// The fallback is cloned, never aliased.
	s.Conf.EtcdServers[0] = "changed"
	assert.Equal(t, "http://127.0.0.1:2379", GridConf.EtcdServers[0])
}
