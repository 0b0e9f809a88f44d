package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	u "github.com/araddon/gou"
	"github.com/lytics/dfa"
	"github.com/lytics/grid"
	nats "github.com/nats-io/go-nats"

	"github.com/dataux/fsmgrid/fsm"
	"github.com/dataux/fsmgrid/natsbus"
	"github.com/dataux/fsmgrid/protocol"
)

// WorkerCreate factory for worker actors.  The coordinator starts one
// per peer, passing the ack mailbox name and payload block size in
// the actor start data.
func WorkerCreate(conf *Conf, client *grid.Client, server *grid.Server) grid.MakeActor {
	return func(data []byte) (grid.Actor, error) {
		spec := &WorkerSpec{}
		if err := json.Unmarshal(data, spec); err != nil {
			return nil, fmt.Errorf("cluster: bad worker spec: %v", err)
		}
		if spec.Coordinator == "" {
			return nil, fmt.Errorf("cluster: worker spec missing coordinator mailbox")
		}
		return &WorkerActor{
			conf:   conf,
			client: client,
			server: server,
			spec:   spec,
		}, nil
	}
}

// WorkerActor runs one automaton over a grid mailbox.
type WorkerActor struct {
	conf   *Conf
	client *grid.Client
	server *grid.Server
	spec   *WorkerSpec
	ctx    context.Context
	name   string
	final  fsm.State
}

func (a *WorkerActor) ID() string {
	return a.name
}

func (a *WorkerActor) String() string {
	return a.name
}

func (a *WorkerActor) Act(ctx context.Context) {
	a.ctx = ctx
	a.name, _ = grid.ContextActorName(ctx)

	d := dfa.New()
	d.SetStartState(Starting)
	d.SetTerminalStates(Exiting, Terminating)
	d.SetTransitionLogger(func(state dfa.State) {
		u.Debugf("%v: switched to state: %v", a, state)
	})

	d.SetTransition(Starting, Started, Running, a.Running)
	d.SetTransition(Starting, Failure, Exiting, a.Exiting)
	d.SetTransition(Running, Finished, Terminating, a.Terminating)
	d.SetTransition(Running, Failure, Exiting, a.Exiting)
	d.SetTransition(Running, Exit, Exiting, a.Exiting)

	final, _ := d.Run(a.Starting)
	u.Debugf("%v: final state: %v", a, final)
}

func (a *WorkerActor) Starting() dfa.Letter {
	return Started
}

// Running feeds the protocol worker until acceptance or poison.  The
// inbound side is a grid mailbox named after the actor, or a nats
// subscription when the coordinator put a subject prefix in the spec.
func (a *WorkerActor) Running() dfa.Letter {

	var bus protocol.WorkerBus
	if a.spec.NatsPrefix != "" {
		nc, err := nats.Connect(strings.Join(a.conf.NatsServers, ","))
		if err != nil {
			u.Errorf("%v: could not connect to nats: %v", a, err)
			return Failure
		}
		defer nc.Close()
		nb, err := natsbus.NewWorkerBus(nc, a.spec.NatsPrefix, a.name)
		if err != nil {
			u.Errorf("%v: %v", a, err)
			return Failure
		}
		defer nb.Close()
		bus = nb
	} else {
		mbox, err := grid.NewMailbox(a.server, a.name, 10)
		if err != nil {
			u.Errorf("%v: could not create mailbox: %v", a, err)
			return Failure
		}
		defer mbox.Close()
		bus = &gridWorkerBus{
			client:      a.client,
			mbox:        mbox,
			coordinator: a.spec.Coordinator,
		}
	}

	w := protocol.NewWorker(a.name, bus, a.spec.MsgSize)

	final, err := w.Run(a.ctx)
	a.final = final
	if err == context.Canceled {
		return Exit
	}
	if err != nil {
		u.Errorf("%v: worker failed in state %v: %v", a, final, err)
		return Failure
	}
	return Finished
}

func (a *WorkerActor) Terminating() {
	u.Infof("%v: shutting down in state %v acked=%v", a, a.final, fsm.Accepting(a.final))
}

func (a *WorkerActor) Exiting() {
}
