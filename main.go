package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	u "github.com/araddon/gou"

	"github.com/dataux/fsmgrid/cluster"
	"github.com/dataux/fsmgrid/models"
	"github.com/dataux/fsmgrid/protocol"
	"github.com/dataux/fsmgrid/version"
)

var (
	configFile *string = flag.String("config", "fsmgrid.conf", "fsmgrid node config file")
	logLevel   *string = flag.String("loglevel", "debug", "log level [debug|info|warn|error]")
)

func main() {

	runtime.GOMAXPROCS(runtime.NumCPU())

	flag.Parse()

	if len(*configFile) == 0 {
		u.Errorf("must use a config file")
		return
	}
	u.SetupLogging(*logLevel)
	u.SetColorIfTerminal()
	u.Infof("fsmgrid version %v", version.Version)

	// get config
	conf, err := models.LoadConfigFromFile(*configFile)
	if err != nil {
		u.Errorf("Could not load config: %v", err)
		os.Exit(1)
	}
	if conf.LogLevel != "" {
		u.SetupLogging(conf.LogLevel)
	}

	cconf, err := conf.ClusterConf()
	if err != nil {
		u.Errorf("Bad config: %v", err)
		os.Exit(1)
	}

	// Without etcd we run every participant as a goroutine in this
	// process; with etcd we join the grid and let it place the
	// coordinator and workers across peers.
	if !conf.DistributedMode() {
		if err := runLocal(cconf); err != nil {
			u.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	svr := cluster.NewServer(cconf)

	quit := make(chan bool)
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		sig := <-sc
		u.Infof("Got signal [%d] to exit.", sig)
		close(quit)
	}()

	if err := svr.Run(quit); err != nil {
		os.Exit(1)
	}
}

// runLocal wires coordinator and workers over channel pairs, no
// cluster involved.
func runLocal(conf *cluster.Conf) error {

	names := make([]string, 0, conf.WorkerCt)
	for i := 0; i < conf.WorkerCt; i++ {
		names = append(names, fmt.Sprintf("worker-%d", i))
	}

	bus := protocol.NewLocalBus(names, 16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, name := range names {
		wb, err := bus.Worker(name)
		if err != nil {
			return err
		}
		w := protocol.NewWorker(name, wb, conf.MsgSize)
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			final, err := w.Run(ctx)
			if err != nil {
				u.Warnf("%s stopped in state %v: %v", name, final, err)
				return
			}
			u.Infof("%s finished in state %v", name, final)
		}(name)
	}

	seed := conf.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	coord, err := protocol.NewCoordinator(protocol.CoordinatorCfg{
		Name:    "coordinator",
		Workers: names,
		Policy:  conf.Policy,
		Rounds:  conf.Rounds,
		MsgSize: conf.MsgSize,
		MaxWait: conf.MaxWait,
		Tick:    conf.Tick,
	}, bus, protocol.NewRandSource(seed))
	if err != nil {
		return err
	}

	res, err := coord.Run(ctx)
	if res != nil {
		u.Infof("local run: rounds=%d complete=%v acked=%v laggards=%v",
			res.Rounds, res.Complete, res.Acked, res.Laggards)
	}
	wg.Wait()
	return err
}
