package protocol

import (
	"math/rand"

	"github.com/dataux/fsmgrid/fsm"
)

// SymbolSource supplies the next symbol to broadcast.  The source is
// stateless with respect to the protocol; its distribution is policy,
// not contract.  Note the protocol makes no liveness promise if the
// source never emits a driving subsequence.
type SymbolSource interface {
	Next() fsm.Symbol
}

// RandSource draws uniformly over the data alphabet.
type RandSource struct {
	r *rand.Rand
}

// NewRandSource with a seed, so runs can be replayed.
func NewRandSource(seed int64) *RandSource {
	return &RandSource{r: rand.New(rand.NewSource(seed))}
}

func (s *RandSource) Next() fsm.Symbol {
	return fsm.Symbol(s.r.Intn(fsm.NumSymbols))
}

// SeqSource replays a fixed script, cycling once exhausted.  Cycling
// keeps the coordinator's pump total: the ack-tracked policy may need
// rounds past the end of the script while late acks drain in.
type SeqSource struct {
	seq []fsm.Symbol
	i   int
}

// NewSeqSource panics on an empty script; a source with nothing to
// emit cannot satisfy the Next contract.
func NewSeqSource(seq ...fsm.Symbol) *SeqSource {
	if len(seq) == 0 {
		panic("protocol: sequence source needs at least one symbol")
	}
	return &SeqSource{seq: seq}
}

func (s *SeqSource) Next() fsm.Symbol {
	sym := s.seq[s.i%len(s.seq)]
	s.i++
	return sym
}
