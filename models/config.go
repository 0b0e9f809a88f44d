package models

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/lytics/confl"

	"github.com/dataux/fsmgrid/cluster"
	"github.com/dataux/fsmgrid/protocol"
)

// LoadConfigFromFile Read a Confl formatted config file from disk
func LoadConfigFromFile(filename string) (*Config, error) {
	var c Config
	confBytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if _, err = confl.Decode(os.ExpandEnv(string(confBytes)), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig load a confl formatted file from string (assumes came)
//  from file or passed in
func LoadConfig(conf string) (*Config, error) {
	var c Config
	if _, err := confl.Decode(os.ExpandEnv(conf), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Config for a coordination node.  Durations are confl strings
// ("30s", "250ms") parsed at conversion time; a zero MaxWait means
// wait forever.
type Config struct {
	SupressRecover bool     `json:"supress_recover"` // do we recover?
	LogLevel       string   `json:"log_level"`       // [debug,info,error,]
	GridName       string   `json:"grid_name"`       // etcd/grid namespace
	Address        string   `json:"address"`         // host:port this node listens on
	WorkerCt       int      `json:"worker_ct"`       // how many worker automatons per run
	MsgSize        int      `json:"msg_size"`        // payload block size, elements per symbol
	Rounds         int      `json:"rounds"`          // fixed-rounds broadcast count
	Policy         string   `json:"policy"`          // [track-acks,fixed-rounds]
	Seed           int64    `json:"seed"`            // symbol source seed, 0 = time based
	MaxWait        string   `json:"max_wait"`        // overall run deadline, "" = none
	Tick           string   `json:"tick"`            // delay between broadcast rounds
	Etcd           []string `json:"etcd"`            // list of etcd servers http://127.0.0.1:2379,http://127.0.0.1:2380
	Nats           []string `json:"nats"`            // list of nats servers nats://127.0.0.1:4222
}

// DistributedMode  Does this config operate in distributed mode?
func (c *Config) DistributedMode() bool {
	if len(c.Etcd) == 0 {
		return false
	}
	return true
}

// ClusterConf converts to the runtime conf, validating the policy
// name and parsing duration strings.
func (c *Config) ClusterConf() (*cluster.Conf, error) {
	pol, err := protocol.PolicyFromString(c.Policy)
	if err != nil {
		return nil, err
	}
	var maxWait, tick time.Duration
	if c.MaxWait != "" {
		if maxWait, err = time.ParseDuration(c.MaxWait); err != nil {
			return nil, fmt.Errorf("models: bad max_wait %q: %v", c.MaxWait, err)
		}
	}
	if c.Tick != "" {
		if tick, err = time.ParseDuration(c.Tick); err != nil {
			return nil, fmt.Errorf("models: bad tick %q: %v", c.Tick, err)
		}
	}
	conf := &cluster.Conf{
		GridName:    c.GridName,
		Address:     c.Address,
		EtcdServers: c.Etcd,
		NatsServers: c.Nats,
		WorkerCt:    c.WorkerCt,
		MsgSize:     c.MsgSize,
		Rounds:      c.Rounds,
		Policy:      pol,
		Seed:        c.Seed,
		MaxWait:     maxWait,
		Tick:        tick,
	}
	if conf.GridName == "" {
		conf.GridName = "fsmgrid"
	}
	if conf.MsgSize == 0 {
		conf.MsgSize = 1
	}
	return conf, nil
}
