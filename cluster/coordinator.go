package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	u "github.com/araddon/gou"
	"github.com/lytics/dfa"
	"github.com/lytics/grid"
	nats "github.com/nats-io/go-nats"

	"github.com/dataux/fsmgrid/natsbus"
	"github.com/dataux/fsmgrid/protocol"
)

// CoordinatorCreate factory for the coordinator actor.  Registered
// under the grid "leader" type so the grid starts exactly one per
// namespace, on whichever peer wins the registry race.
func CoordinatorCreate(conf *Conf, client *grid.Client, server *grid.Server) grid.MakeActor {
	return func(data []byte) (grid.Actor, error) {
		return &CoordinatorActor{
			conf:   conf,
			client: client,
			server: server,
			peers:  newPeerList(),
		}, nil
	}
}

// CoordinatorActor drives one coordination run: discover worker
// peers, start a worker actor on each, then pump symbols and track
// acknowledgments through the protocol coordinator.
type CoordinatorActor struct {
	conf    *Conf
	client  *grid.Client
	server  *grid.Server
	peers   *peerList
	ctx     context.Context
	name    string
	mbox    *grid.Mailbox
	flow    Flow
	workers []string
	res     *protocol.Result
}

func (a *CoordinatorActor) ID() string {
	return a.name
}

func (a *CoordinatorActor) String() string {
	return a.name
}

func (a *CoordinatorActor) Act(ctx context.Context) {
	a.ctx = ctx
	a.name, _ = grid.ContextActorName(ctx)

	id, err := NextId()
	if err != nil {
		u.Errorf("%v: no flow id: %v", a, err)
		return
	}
	a.flow = NewFlow(id)

	d := dfa.New()
	d.SetStartState(Starting)
	d.SetTerminalStates(Exiting, Terminating)
	d.SetTransitionLogger(func(state dfa.State) {
		u.Debugf("%v: switched to state: %v", a, state)
	})

	d.SetTransition(Starting, EverybodyStarted, Running, a.Running)
	d.SetTransition(Starting, Failure, Exiting, a.Exiting)
	d.SetTransition(Starting, Exit, Exiting, a.Exiting)

	d.SetTransition(Running, EverybodyFinished, Finishing, a.Finishing)
	d.SetTransition(Running, Failure, Exiting, a.Exiting)
	d.SetTransition(Running, Exit, Exiting, a.Exiting)

	d.SetTransition(Finishing, Exit, Terminating, a.Terminating)

	final, _ := d.Run(a.Starting)
	u.Infof("%v: final state: %v", a, final)
}

// Starting opens the ack mailbox, then watches the peer registry and
// starts one worker actor per discovered peer until WorkerCt workers
// are running.
func (a *CoordinatorActor) Starting() dfa.Letter {

	mbox, err := grid.NewMailbox(a.server, a.flow.NewContextualName("acks"), a.conf.WorkerCt*2)
	if err != nil {
		u.Errorf("%v: could not create ack mailbox: %v", a, err)
		return Failure
	}
	a.mbox = mbox

	ws := &WorkerSpec{
		Coordinator: mbox.Name(),
		MsgSize:     a.conf.MsgSize,
	}
	if len(a.conf.NatsServers) > 0 {
		ws.NatsPrefix = a.flow.Name()
	}
	spec, err := json.Marshal(ws)
	if err != nil {
		u.Errorf("%v: could not marshal worker spec: %v", a, err)
		return Failure
	}

	started := make(chan string, a.conf.WorkerCt+8)
	var startedCt int64
	newPeer := func(e *peerEntry) {
		if atomic.AddInt64(&startedCt, 1) > int64(a.conf.WorkerCt) {
			return
		}
		start := grid.NewActorStart(a.flow.NewContextualName(fmt.Sprintf("worker-%d", e.id)))
		start.Type = "worker"
		start.Data = spec

		_, err := a.client.Request(timeout, e.name, start)
		if err != nil {
			u.Errorf("%v: could not start worker on peer %v: %v", a, e.name, err)
			atomic.AddInt64(&startedCt, -1)
			return
		}
		started <- start.Name
	}

	watchCtx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	go a.peers.watchPeers(watchCtx, a.client, newPeer)

	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return Exit
		case <-ticker.C:
			u.Warnf("%v: still waiting: %d/%d workers started", a, len(a.workers), a.conf.WorkerCt)
		case name := <-started:
			a.workers = append(a.workers, name)
			u.Infof("%v: worker %v started (%d/%d)", a, name, len(a.workers), a.conf.WorkerCt)
			if len(a.workers) == a.conf.WorkerCt {
				return EverybodyStarted
			}
		}
	}
}

// Running hands off to the protocol coordinator over the grid bus.
func (a *CoordinatorActor) Running() dfa.Letter {

	seed := a.conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Grid mailboxes are the default data plane; with nats configured
	// the symbols and acks ride pub/sub instead, and grid only places
	// and supervises the actors.
	var bus protocol.CoordinatorBus = &gridBus{client: a.client, workers: a.workers, mbox: a.mbox}
	if len(a.conf.NatsServers) > 0 {
		nc, err := nats.Connect(strings.Join(a.conf.NatsServers, ","))
		if err != nil {
			u.Errorf("%v: could not connect to nats: %v", a, err)
			return Failure
		}
		defer nc.Close()
		nb, err := natsbus.NewCoordinatorBus(nc, a.flow.Name())
		if err != nil {
			u.Errorf("%v: %v", a, err)
			return Failure
		}
		defer nb.Close()
		bus = nb
	}

	coord, err := protocol.NewCoordinator(protocol.CoordinatorCfg{
		Name:    a.name,
		Workers: a.workers,
		Policy:  a.conf.Policy,
		Rounds:  a.conf.Rounds,
		MsgSize: a.conf.MsgSize,
		MaxWait: a.conf.MaxWait,
		Tick:    a.conf.Tick,
	}, bus, protocol.NewRandSource(seed))
	if err != nil {
		u.Errorf("%v: %v", a, err)
		return Failure
	}

	res, err := coord.Run(a.ctx)
	if err != nil && res == nil {
		u.Errorf("%v: coordination failed: %v", a, err)
		return Failure
	}
	if err != nil {
		u.Warnf("%v: coordination stopped early: %v", a, err)
	}
	a.res = res
	return EverybodyFinished
}

func (a *CoordinatorActor) Finishing() dfa.Letter {
	if a.res != nil {
		u.Infof("%v: rounds=%d complete=%v acked=%v laggards=%v",
			a, a.res.Rounds, a.res.Complete, a.res.Acked, a.res.Laggards)
	}
	return Exit
}

func (a *CoordinatorActor) Terminating() {
	if a.mbox != nil {
		a.mbox.Close()
	}
}

func (a *CoordinatorActor) Exiting() {
	if a.mbox != nil {
		a.mbox.Close()
	}
}
