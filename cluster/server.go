package cluster

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	u "github.com/araddon/gou"
	etcdv3 "github.com/coreos/etcd/clientv3"
	"github.com/lytics/grid"
	"github.com/sony/sonyflake"
)

var (
	// GridConf is the built-in default; NewServer falls back to it
	// when no config is supplied, real runtime passes a loaded one.
	GridConf = &Conf{
		GridName:    "fsmgrid",
		Address:     "localhost:0",
		EtcdServers: strings.Split("http://127.0.0.1:2379", ","),
		WorkerCt:    2,
		MsgSize:     1,
	}

	// Unique id service.
	sf *sonyflake.Sonyflake
)

func init() {
	var st sonyflake.Settings
	st.StartTime = time.Now()
	sf = sonyflake.NewSonyflake(st)
}

func NextId() (uint64, error) {
	return sf.NextID()
}

func NodeName(id uint64) string {
	hostname, err := os.Hostname()
	if err != nil {
		u.Errorf("error: failed to discover hostname: %v", err)
	}
	return fmt.Sprintf("%s-%d", hostname, id)
}

// Flow is the run-scoped name prefix shared by the actors and
// mailboxes of a single coordination run.
type Flow string

func NewFlow(nr uint64) Flow {
	return Flow(fmt.Sprintf("run-%v", nr))
}

func (f Flow) NewContextualName(name string) string {
	return fmt.Sprintf("%v-%v", f, name)
}

func (f Flow) Name() string {
	return string(f)
}

func (f Flow) String() string {
	return string(f)
}

// Server is one grid node.  Every node can host worker actors; the
// grid elects one node to run the coordinator (registered as the grid
// "leader" type).
type Server struct {
	Conf       *Conf
	GridServer *grid.Server
	gridClient *grid.Client
	etcd       *etcdv3.Client
}

func NewServer(conf *Conf) *Server {
	nextId, _ := NextId()
	if conf == nil {
		conf = GridConf
	}
	c := conf.Clone()
	if c.Hostname == "" {
		c.Hostname = NodeName(nextId)
	}
	return &Server{Conf: c}
}

// Run connects etcd, registers the actor factories and serves the
// grid.  Blocking; returns when the grid shuts down.
func (s *Server) Run(quit chan bool) error {

	logger := u.GetLogger()

	etcd, err := etcdv3.New(etcdv3.Config{Endpoints: s.Conf.EtcdServers})
	if err != nil {
		u.Errorf("failed to start etcd client: %v", err)
		return err
	}
	s.etcd = etcd

	s.gridClient, err = grid.NewClient(etcd, grid.ClientCfg{Namespace: s.Conf.GridName, Logger: logger})
	if err != nil {
		u.Errorf("failed to start grid client: %v", err)
		return err
	}

	s.GridServer, err = grid.NewServer(etcd, grid.ServerCfg{Namespace: s.Conf.GridName, Logger: logger})
	if err != nil {
		u.Errorf("failed to start grid server: %v", err)
		return err
	}

	// The coordinator runs as the grid leader; workers are started
	// on peers by the coordinator itself.
	s.GridServer.RegisterDef("leader", CoordinatorCreate(s.Conf, s.gridClient, s.GridServer))
	s.GridServer.RegisterDef("worker", WorkerCreate(s.Conf, s.gridClient, s.GridServer))

	lis, err := net.Listen("tcp", s.Conf.Address)
	if err != nil {
		u.Errorf("failed to start tcp listener: %v", err)
		return err
	}

	go func() {
		select {
		case <-quit:
			s.GridServer.Stop()
		}
	}()

	err = s.GridServer.Serve(lis)
	if err != nil {
		u.Errorf("grid serve failed: %v", err)
		return err
	}
	return nil
}
