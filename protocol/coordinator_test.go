package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dataux/fsmgrid/fsm"
)

// startWorkers runs a protocol worker goroutine per name and returns
// a wait function yielding the final states by name.
func startWorkers(t *testing.T, bus *LocalBus, names []string, msgSize int) func() map[string]fsm.State {
	var mu sync.Mutex
	var wg sync.WaitGroup
	finals := make(map[string]fsm.State, len(names))
	for _, name := range names {
		wb, err := bus.Worker(name)
		assert.Equal(t, nil, err)
		w := NewWorker(name, wb, msgSize)
		wg.Add(1)
		go func(name string, w *Worker) {
			defer wg.Done()
			final, err := w.Run(context.Background())
			assert.Equal(t, nil, err, "worker %s", name)
			mu.Lock()
			finals[name] = final
			mu.Unlock()
		}(name, w)
	}
	return func() map[string]fsm.State {
		wg.Wait()
		return finals
	}
}

// End to end: 1 coordinator + 3 workers, script [C,A,B,C].  All three
// workers independently reach acceptance on round 4 and each acks
// once; the completion set reaches 3 and the run terminates,
// regardless of arrival interleaving.
func TestCoordinatorTrackAcks(t *testing.T) {
	names := []string{"worker-1", "worker-2", "worker-3"}
	bus := NewLocalBus(names, 16)
	wait := startWorkers(t, bus, names, 1)

	coord, err := NewCoordinator(CoordinatorCfg{
		Workers: names,
		Policy:  TrackAcks,
		MaxWait: 30 * time.Second,
	}, bus, NewSeqSource(fsm.C, fsm.A, fsm.B, fsm.C))
	assert.Equal(t, nil, err)

	res, err := coord.Run(context.Background())
	assert.Equal(t, nil, err)
	assert.True(t, res.Complete)
	assert.True(t, res.Rounds >= 4, "needs at least the driving prefix, got %d", res.Rounds)
	assert.Equal(t, names, res.Acked)
	assert.Equal(t, []string{}, res.Laggards)

	for name, final := range wait() {
		assert.Equal(t, fsm.Q3, final, "worker %s", name)
	}
}

// Duplicate and stray acks never re-trigger or double count
// termination: with K=3 the coordinator stops after the 3 distinct
// acks, and the extra two deliveries change nothing.
func TestCoordinatorDuplicateAcks(t *testing.T) {
	names := []string{"w1", "w2", "w3"}
	bus := NewLocalBus(names, 64)

	// Sinks instead of real workers; this test drives the ack
	// channel by hand.
	var wg sync.WaitGroup
	for _, name := range names {
		wb, _ := bus.Worker(name)
		wg.Add(1)
		go func(wb WorkerBus) {
			defer wg.Done()
			for {
				msg, err := wb.Recv(context.Background())
				if err != nil {
					return
				}
				if _, ok := msg.(*StopMsg); ok {
					return
				}
			}
		}(wb)
	}

	ctx := context.Background()
	for _, from := range []string{"w1", "w1", "w2", "intruder", "w3", "w2"} {
		wb, err := bus.Worker("w1")
		assert.Equal(t, nil, err)
		assert.Equal(t, nil, wb.SendAck(ctx, NewAckMsg(from, 1)))
	}

	coord, err := NewCoordinator(CoordinatorCfg{
		Workers: names,
		Policy:  TrackAcks,
		MaxWait: 30 * time.Second,
	}, bus, NewRandSource(42))
	assert.Equal(t, nil, err)

	res, err := coord.Run(ctx)
	assert.Equal(t, nil, err)
	assert.True(t, res.Complete)
	assert.Equal(t, []string{"w1", "w2", "w3"}, res.Acked)
	assert.Equal(t, 3, coord.Completion().Size())

	wg.Wait()
	bus.Close()
}

// Fixed-round policy stops after exactly N rounds regardless of any
// worker's acceptance status; the laggard report names everyone that
// never acked.
func TestCoordinatorFixedRounds(t *testing.T) {
	names := []string{"worker-1", "worker-2"}
	bus := NewLocalBus(names, 16)
	wait := startWorkers(t, bus, names, 1)

	// Nothing but A symbols: workers park in Q1 forever.
	coord, err := NewCoordinator(CoordinatorCfg{
		Workers: names,
		Policy:  FixedRounds,
		Rounds:  5,
	}, bus, NewSeqSource(fsm.A))
	assert.Equal(t, nil, err)

	res, err := coord.Run(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, res.Rounds)
	assert.True(t, !res.Complete)
	assert.Equal(t, []string{}, res.Acked)
	assert.Equal(t, names, res.Laggards)

	// The stop poison still reaches the parked workers.
	for name, final := range wait() {
		assert.Equal(t, fsm.Q1, final, "worker %s", name)
	}
}

// MaxWait bounds an ack-tracked run whose symbol source never drives
// the workers to acceptance.
func TestCoordinatorMaxWait(t *testing.T) {
	names := []string{"worker-1"}
	bus := NewLocalBus(names, 16)
	wait := startWorkers(t, bus, names, 1)

	coord, err := NewCoordinator(CoordinatorCfg{
		Workers: names,
		Policy:  TrackAcks,
		MaxWait: 100 * time.Millisecond,
		Tick:    time.Millisecond,
	}, bus, NewSeqSource(fsm.B))
	assert.Equal(t, nil, err)

	res, err := coord.Run(context.Background())
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.True(t, !res.Complete)
	assert.Equal(t, names, res.Laggards)

	for _, final := range wait() {
		assert.Equal(t, fsm.Q0, final)
	}
}

func TestCoordinatorCfgValidation(t *testing.T) {
	bus := NewLocalBus([]string{"w"}, 1)

	_, err := NewCoordinator(CoordinatorCfg{}, bus, NewRandSource(1))
	assert.NotEqual(t, nil, err)

	_, err = NewCoordinator(CoordinatorCfg{
		Workers: []string{"w"},
		Policy:  FixedRounds,
	}, bus, NewRandSource(1))
	assert.NotEqual(t, nil, err)
}

func TestPolicyFromString(t *testing.T) {
	p, err := PolicyFromString("")
	assert.Equal(t, nil, err)
	assert.Equal(t, TrackAcks, p)

	p, err = PolicyFromString("fixed-rounds")
	assert.Equal(t, nil, err)
	assert.Equal(t, FixedRounds, p)

	_, err = PolicyFromString("sometimes")
	assert.NotEqual(t, nil, err)
}

func TestSources(t *testing.T) {
	seq := NewSeqSource(fsm.A, fsm.B)
	assert.Equal(t, fsm.A, seq.Next())
	assert.Equal(t, fsm.B, seq.Next())
	// Cycles once exhausted.
	assert.Equal(t, fsm.A, seq.Next())

	r := NewRandSource(7)
	for i := 0; i < 100; i++ {
		assert.True(t, r.Next().Valid())
	}

	// An empty script is rejected at construction, not on first use.
	assert.Panics(t, func() { NewSeqSource() })
}
