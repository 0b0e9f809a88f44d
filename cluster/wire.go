package cluster

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/dataux/fsmgrid/protocol"
)

var (
	_ proto.Message = (*SymbolDelivery)(nil)
	_ proto.Message = (*AckDelivery)(nil)
	_ proto.Message = (*StopDelivery)(nil)
)

// The grid codec only moves proto messages, so the protocol structs
// are mirrored into these envelopes at the bus boundary.  Kept in
// sync by hand; the field set is two scalars per message.

type SymbolDelivery struct {
	From  string  `protobuf:"bytes,1,opt,name=from,proto3" json:"from,omitempty"`
	Block []int32 `protobuf:"varint,2,rep,packed,name=block,proto3" json:"block,omitempty"`
}

func (m *SymbolDelivery) Reset()         { *m = SymbolDelivery{} }
func (m *SymbolDelivery) String() string { return proto.CompactTextString(m) }
func (*SymbolDelivery) ProtoMessage()    {}

type AckDelivery struct {
	From  string  `protobuf:"bytes,1,opt,name=from,proto3" json:"from,omitempty"`
	Block []int32 `protobuf:"varint,2,rep,packed,name=block,proto3" json:"block,omitempty"`
}

func (m *AckDelivery) Reset()         { *m = AckDelivery{} }
func (m *AckDelivery) String() string { return proto.CompactTextString(m) }
func (*AckDelivery) ProtoMessage()    {}

type StopDelivery struct {
	From string `protobuf:"bytes,1,opt,name=from,proto3" json:"from,omitempty"`
}

func (m *StopDelivery) Reset()         { *m = StopDelivery{} }
func (m *StopDelivery) String() string { return proto.CompactTextString(m) }
func (*StopDelivery) ProtoMessage()    {}

// toWire wraps a protocol message in its envelope.
func toWire(msg interface{}) (proto.Message, error) {
	switch m := msg.(type) {
	case *protocol.SymbolMsg:
		return &SymbolDelivery{From: m.From, Block: m.Block}, nil
	case *protocol.AckMsg:
		return &AckDelivery{From: m.From, Block: m.Block}, nil
	case *protocol.StopMsg:
		return &StopDelivery{From: m.From}, nil
	}
	return nil, fmt.Errorf("cluster: no wire envelope for %T", msg)
}

// fromWire unwraps an envelope back to its protocol message.  Unknown
// types pass through unchanged so the caller sees what arrived.
func fromWire(msg interface{}) interface{} {
	switch m := msg.(type) {
	case *SymbolDelivery:
		return &protocol.SymbolMsg{From: m.From, Block: m.Block}
	case *AckDelivery:
		return &protocol.AckMsg{From: m.From, Block: m.Block}
	case *StopDelivery:
		return &protocol.StopMsg{From: m.From}
	}
	return msg
}
