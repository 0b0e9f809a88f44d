// Package fsm defines the automaton shared by every worker in a
// coordination group: a finite alphabet of broadcast symbols, a small
// totally-ordered state set, and a dense transition table with
// per-symbol guard preconditions.  The automaton is pure data, no
// mutable state lives here; every worker instantiates its own cursor
// over the same table.
package fsm

import "fmt"

// Symbol is one element of the broadcast alphabet.  Symbols are small
// integer tags so they can travel on the wire as-is.
type Symbol int32

const (
	A Symbol = iota
	B
	C

	// Ack is reserved for the worker->coordinator channel and is
	// never part of the data alphabet nor the transition table.
	Ack
)

// NumSymbols is the size of the data alphabet, excluding Ack.
const NumSymbols = 3

// State of the automaton.  Q0 is initial, Q3 accepting.
type State int32

const (
	Q0 State = iota
	Q1
	Q2
	Q3
)

// Start state assigned to every worker at construction.
const Start = Q0

// delta is total: every (state, symbol) pair maps to exactly one
// successor, accepting state included (self-loop) so stray
// post-acceptance input is absorbed rather than undefined.
//
// Together with the guards below the accepted language is
// "(B|C)* A (A|C)* B (A|B)* C": at least one of each of A, B, C in
// that relative order, with any interleaving of non-triggering
// symbols absorbed.
var delta = [4][NumSymbols]State{
	{Q1, Q0, Q0},
	{Q1, Q2, Q1},
	{Q2, Q2, Q3},
	{Q3, Q3, Q3},
}

// guards tie each symbol to the only state in which it is consumed
// meaningfully: A drives the first transition only from Q0, B only
// from Q1, C only from Q2.
var guards = [NumSymbols]State{A: Q0, B: Q1, C: Q2}

// Next is the raw table lookup.  Pure, O(1); sym must be a member of
// the data alphabet.
func Next(s State, sym Symbol) State {
	return delta[s][sym]
}

// Advance applies the guarded transition: the symbol is consumed only
// while the automaton sits in that symbol's precondition state, any
// other arrival is a no-op leaving the state unchanged.  Total over
// all inputs; tags outside the data alphabet are absorbed like any
// non-triggering symbol.
func Advance(s State, sym Symbol) State {
	if !sym.Valid() || guards[sym] != s {
		return s
	}
	return Next(s, sym)
}

// Accepting reports whether s is the terminal state.
func Accepting(s State) bool {
	return s == Q3
}

// Fold runs the guarded transition function over a symbol sequence.
func Fold(s State, syms []Symbol) State {
	for _, sym := range syms {
		s = Advance(s, sym)
	}
	return s
}

// Valid reports whether sym is a member of the data alphabet.
func (sym Symbol) Valid() bool {
	return sym >= A && sym < NumSymbols
}

func (sym Symbol) String() string {
	switch sym {
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case Ack:
		return "ACK"
	}
	return fmt.Sprintf("symbol-%d", int32(sym))
}

func (s State) String() string {
	if s >= Q0 && s <= Q3 {
		return fmt.Sprintf("Q%d", int32(s))
	}
	return fmt.Sprintf("state-%d", int32(s))
}
