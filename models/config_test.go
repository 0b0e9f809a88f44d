package models

import (
	"testing"
	"time"

	u "github.com/araddon/gou"
	"github.com/stretchr/testify/assert"

	"github.com/dataux/fsmgrid/protocol"
)

func init() {
	u.SetupLogging("debug")
	u.SetColorOutput()
}
func TestConfig(t *testing.T) {

	var configData = `

supress_recover = true
log_level = debug
grid_name = fsmtest
address = "127.0.0.1:0"

worker_ct = 3
msg_size  = 100
policy    = "track-acks"
max_wait  = "30s"
tick      = "5ms"

# coordination hosts
etcd = [ "http://127.0.0.1:2379" ]
nats = [ "nats://127.0.0.1:4222" ]

`

	conf, err := LoadConfig(configData)
	assert.True(t, err == nil && conf != nil, "Must not error on parse of config: %v", err)

	assert.True(t, conf.LogLevel == "debug")
	assert.True(t, conf.DistributedMode())
	assert.Equal(t, 3, conf.WorkerCt)

	cc, err := conf.ClusterConf()
	assert.Equal(t, nil, err)
	assert.Equal(t, protocol.TrackAcks, cc.Policy)
	assert.Equal(t, 100, cc.MsgSize)
	assert.Equal(t, 30*time.Second, cc.MaxWait)
	assert.Equal(t, 5*time.Millisecond, cc.Tick)
	assert.Equal(t, "fsmtest", cc.GridName)
}

func TestConfigDefaults(t *testing.T) {
	conf, err := LoadConfig(`policy = "fixed-rounds"
rounds = 50`)
	assert.Equal(t, nil, err)
	assert.True(t, !conf.DistributedMode())

	cc, err := conf.ClusterConf()
	assert.Equal(t, nil, err)
	assert.Equal(t, protocol.FixedRounds, cc.Policy)
	assert.Equal(t, 50, cc.Rounds)
	assert.Equal(t, 1, cc.MsgSize, "block size floor is one element")
	assert.Equal(t, "fsmgrid", cc.GridName)
}

func TestConfigBad(t *testing.T) {
	conf, err := LoadConfig(`policy = sometimes`)
	assert.Equal(t, nil, err)
	_, err = conf.ClusterConf()
	assert.NotEqual(t, nil, err)

	conf, err = LoadConfig(`policy = "track-acks"
max_wait = "whenever"`)
	assert.Equal(t, nil, err)
	_, err = conf.ClusterConf()
	assert.NotEqual(t, nil, err)
}
