package protocol

import (
	"encoding/gob"
	"fmt"

	"github.com/dataux/fsmgrid/fsm"
)

func init() {
	// Register our message types for gob based transports.
	gob.Register(SymbolMsg{})
	gob.Register(AckMsg{})
	gob.Register(StopMsg{})
}

var (
	// ErrEmptyPayload when a message arrives with no symbol block.
	ErrEmptyPayload = fmt.Errorf("protocol: empty symbol payload")
	// ErrUnknownSymbol when the leading payload element is outside
	// the data alphabet.
	ErrUnknownSymbol = fmt.Errorf("protocol: unknown symbol tag")
)

// SymbolMsg is one broadcast round's payload: a homogeneous block of
// MsgSize repetitions of the same symbol tag.  Only element 0 is
// load-bearing, the replication is a transport sizing knob carried
// over from the wire contract, not a semantic one.
type SymbolMsg struct {
	From  string
	Block []int32
}

// AckMsg is sent exactly once by a worker on reaching the accepting
// state.  The block is the reserved Ack tag replicated to the same
// size as symbol payloads, for channel symmetry.
type AckMsg struct {
	From  string
	Block []int32
}

// StopMsg is the poison message: the coordinator broadcasts it after
// completion (or round-cap exhaustion) so workers never hang waiting
// on symbols that will not come.
type StopMsg struct {
	From string
}

// NewSymbolMsg builds a block payload of size copies of sym.
func NewSymbolMsg(from string, sym fsm.Symbol, size int) *SymbolMsg {
	if size < 1 {
		size = 1
	}
	block := make([]int32, size)
	for i := range block {
		block[i] = int32(sym)
	}
	return &SymbolMsg{From: from, Block: block}
}

// NewAckMsg builds the single acknowledgment payload for a worker.
func NewAckMsg(from string, size int) *AckMsg {
	if size < 1 {
		size = 1
	}
	block := make([]int32, size)
	for i := range block {
		block[i] = int32(fsm.Ack)
	}
	return &AckMsg{From: from, Block: block}
}

// Symbol extracts the leading element of the payload block.  A
// malformed or truncated payload is a protocol violation, fatal for
// the receiving worker; there is no retransmission path.
func (m *SymbolMsg) Symbol() (fsm.Symbol, error) {
	if len(m.Block) == 0 {
		return 0, ErrEmptyPayload
	}
	sym := fsm.Symbol(m.Block[0])
	if !sym.Valid() {
		return 0, fmt.Errorf("%v: tag %d from %q", ErrUnknownSymbol, m.Block[0], m.From)
	}
	return sym, nil
}
