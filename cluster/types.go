package cluster

import (
	"fmt"
	"time"

	"github.com/lytics/dfa"
	"github.com/lytics/grid"

	"github.com/dataux/fsmgrid/protocol"
)

const timeout = 5 * time.Second

var (
	// States of the actor lifecycle machines.
	Starting    = dfa.State("starting")
	Running     = dfa.State("running")
	Finishing   = dfa.State("finishing")
	Exiting     = dfa.State("exiting")
	Terminating = dfa.State("terminating")
	// Letters
	Started           = dfa.Letter("started")
	Failure           = dfa.Letter("failure")
	EverybodyStarted  = dfa.Letter("everybody-started")
	EverybodyFinished = dfa.Letter("everybody-finished")
	Finished          = dfa.Letter("finished")
	Exit              = dfa.Letter("exit")
)

func init() {
	// Register our wire envelopes with the grid codec.  The codec only
	// accepts proto messages, so a rejection here is a programming
	// error in the envelope types and the process must not come up.
	for _, m := range []interface{}{SymbolDelivery{}, AckDelivery{}, StopDelivery{}} {
		if err := grid.Register(m); err != nil {
			panic(fmt.Sprintf("cluster: grid codec rejected %T: %v", m, err))
		}
	}
}

// WorkerSpec parameterizes a worker actor at start: where acks go,
// how big payload blocks are, and the nats subject prefix when the
// run rides nats instead of grid mailboxes.  Serialized into
// ActorStart data.
type WorkerSpec struct {
	Coordinator string
	NatsPrefix  string
	MsgSize     int
}

// Conf for a grid node.
type Conf struct {
	GridName    string
	Hostname    string
	Address     string
	EtcdServers []string
	NatsServers []string
	WorkerCt    int
	MsgSize     int
	Rounds      int
	Policy      protocol.Policy
	Seed        int64
	MaxWait     time.Duration
	Tick        time.Duration
}

func (c *Conf) Clone() *Conf {
	out := *c
	out.EtcdServers = append([]string{}, c.EtcdServers...)
	out.NatsServers = append([]string{}, c.NatsServers...)
	return &out
}
