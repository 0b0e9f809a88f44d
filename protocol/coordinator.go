package protocol

import (
	"context"
	"fmt"
	"time"

	u "github.com/araddon/gou"
)

// Policy names the coordinator's stopping rule.  The two variants are
// deliberately separate: they make different promises.
type Policy int

const (
	// TrackAcks runs unbounded rounds and terminates exactly when
	// every worker has acknowledged.  This is the variant with a
	// real termination-detection guarantee.
	TrackAcks Policy = iota
	// FixedRounds broadcasts exactly Rounds rounds then stops, with
	// no feedback from workers and no completion guarantee.  It is a
	// simpler illustrative mode; callers must inspect Laggards to
	// learn who never finished.
	FixedRounds
)

func (p Policy) String() string {
	switch p {
	case TrackAcks:
		return "track-acks"
	case FixedRounds:
		return "fixed-rounds"
	}
	return fmt.Sprintf("policy-%d", int(p))
}

// PolicyFromString for config files.
func PolicyFromString(s string) (Policy, error) {
	switch s {
	case "", "track-acks", "acks":
		return TrackAcks, nil
	case "fixed-rounds", "fixed":
		return FixedRounds, nil
	}
	return 0, fmt.Errorf("protocol: unknown policy %q", s)
}

// CoordinatorCfg for one run.
type CoordinatorCfg struct {
	// Name identifies the coordinator as a sender.
	Name string
	// Workers are the stable identities expected to ack.
	Workers []string
	// Policy selects the stopping rule.
	Policy Policy
	// Rounds is the broadcast count for FixedRounds.
	Rounds int
	// MsgSize is the payload block replication factor, default 1.
	MsgSize int
	// MaxWait bounds a TrackAcks run; zero means unbounded, as in
	// the original protocol.
	MaxWait time.Duration
	// Tick optionally paces rounds; zero broadcasts back to back and
	// lets transport backpressure set the pace.
	Tick time.Duration
	// PollWait is the ack collector's idle probe interval.
	PollWait time.Duration
}

// Result of a coordinator run.
type Result struct {
	Rounds   int
	Acked    []string
	Laggards []string
	Complete bool
}

// Coordinator owns no automaton.  It pumps symbols from the source to
// every worker and collects acknowledgments until its policy says
// stop.  Symbol production and ack collection run as two concurrent
// activities joined by a channel, so the pump never stalls on workers
// still mid-automaton.
type Coordinator struct {
	cfg  CoordinatorCfg
	bus  CoordinatorBus
	src  SymbolSource
	done *Completion
}

// NewCoordinator validates cfg and wires the bus and symbol source.
func NewCoordinator(cfg CoordinatorCfg, bus CoordinatorBus, src SymbolSource) (*Coordinator, error) {
	if len(cfg.Workers) == 0 {
		return nil, fmt.Errorf("protocol: coordinator needs at least one worker")
	}
	if cfg.Policy == FixedRounds && cfg.Rounds < 1 {
		return nil, fmt.Errorf("protocol: fixed-rounds policy needs a positive round count")
	}
	if cfg.MsgSize < 1 {
		cfg.MsgSize = 1
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "coordinator"
	}
	return &Coordinator{
		cfg:  cfg,
		bus:  bus,
		src:  src,
		done: NewCompletion(cfg.Workers),
	}, nil
}

// Completion set, useful for observation while running.
func (c *Coordinator) Completion() *Completion {
	return c.done
}

// Run the round loop until the policy stops it.  Always broadcasts a
// Stop poison on the way out so workers do not hang.  A transport
// failure on broadcast is fatal; there is no retry at this layer.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	if c.cfg.Policy == TrackAcks && c.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MaxWait)
		defer cancel()
	}

	collectCtx, stopCollect := context.WithCancel(context.Background())
	defer stopCollect()
	allAcked := make(chan struct{})
	go c.collect(collectCtx, allAcked)

	res := &Result{}
	var runErr error

pump:
	for {
		select {
		case <-allAcked:
			res.Complete = true
			break pump
		case <-ctx.Done():
			runErr = ctx.Err()
			break pump
		default:
		}
		if c.cfg.Policy == FixedRounds && res.Rounds >= c.cfg.Rounds {
			break pump
		}

		sym := c.src.Next()
		res.Rounds++
		if err := c.bus.Broadcast(ctx, NewSymbolMsg(c.cfg.Name, sym, c.cfg.MsgSize)); err != nil {
			if ctx.Err() != nil {
				// Deadline or cancel raced the broadcast; report it
				// as the bounded-wait outcome, not a transport fault.
				res.Rounds--
				runErr = ctx.Err()
				break pump
			}
			return nil, fmt.Errorf("broadcast round %d: %v", res.Rounds, err)
		}
		u.Debugf("%s round %d broadcast %v", c.cfg.Name, res.Rounds, sym)

		if c.cfg.Tick > 0 {
			select {
			case <-time.After(c.cfg.Tick):
			case <-allAcked:
				res.Complete = true
				break pump
			case <-ctx.Done():
				runErr = ctx.Err()
				break pump
			}
		}
	}

	stopCollect()
	// One last sweep of anything already sitting on the ack channel,
	// so the fixed-round report is as accurate as it can be.
	c.sweepAcks()
	if c.done.Done() {
		res.Complete = true
	}

	// Poison the workers; best effort, they may already be gone.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.bus.Broadcast(stopCtx, &StopMsg{From: c.cfg.Name}); err != nil {
		u.Warnf("%s could not broadcast stop: %v", c.cfg.Name, err)
	}

	res.Acked = c.done.Members()
	res.Laggards = c.done.Laggards()
	u.Infof("%s done: rounds=%d complete=%v acked=%d/%d",
		c.cfg.Name, res.Rounds, res.Complete, len(res.Acked), len(c.cfg.Workers))
	return res, runErr
}

// collect polls the ack channel without blocking the pump.  Only the
// first ack from each known worker grows the completion set; dupes
// and strays are logged and dropped.
func (c *Coordinator) collect(ctx context.Context, allAcked chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ack, ok := c.bus.ProbeAck()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.PollWait):
			}
			continue
		}
		if c.done.Add(ack.From) {
			u.Debugf("%s ack from %s (%d/%d)", c.cfg.Name, ack.From, c.done.Size(), len(c.cfg.Workers))
			if c.done.Done() {
				close(allAcked)
				return
			}
		} else {
			u.Warnf("%s ignoring duplicate or stray ack from %q", c.cfg.Name, ack.From)
		}
	}
}

func (c *Coordinator) sweepAcks() {
	for {
		ack, ok := c.bus.ProbeAck()
		if !ok {
			return
		}
		if !c.done.Add(ack.From) {
			u.Debugf("%s swept duplicate or stray ack from %q", c.cfg.Name, ack.From)
		}
	}
}
