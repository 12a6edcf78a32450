package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/drive"
	"github.com/robotalks/fes.go/pkg/env"
	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

var depth = 10.0

func init() {
	env.SetupFlags()
	flag.Float64Var(&depth, "depth", depth, "Amplitude modulation depth in mA.")
}

func start(conf *env.Config, stim *fes.Stimulator) error {
	if err := stim.Enable(); err != nil {
		return err
	}
	if err := stim.CreateSchedulerWithDuration(conf.Sync, conf.Duration()); err != nil {
		return err
	}
	if err := stim.AddEvents(fes.StimEvent); err != nil {
		return err
	}
	return stim.Begin()
}

func main() {
	flag.Parse()

	conf := env.MustLoad()
	stim := conf.MustNewStimulator()
	machineID := env.MachineID()

	runner := fx.NewRunner(context.Background()).HandleSignals()

	if conf.MQTTBrokerURL != "" {
		q, err := telemetry.NewQueueFromURL(conf.MQTTBrokerURL)
		if err != nil {
			glog.Fatalf("mqtt: %v", err)
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			glog.Fatalf("mqtt connect: %v", token.Error())
		}
		defer q.Close()
		runner.Go("mqtt", &telemetry.Publisher{
			Source:    stim,
			Pubber:    q,
			MachineID: machineID,
		})
	}
	if conf.HTTPAddr != "" {
		feed := &telemetry.Feed{Source: stim, MachineID: machineID}
		runner.Go("http", &telemetry.Server{
			Addr:    conf.HTTPAddr,
			Handler: telemetry.NewRouter(feed),
		})
	}

	if err := start(conf, stim); err != nil {
		stim.Disable()
		runner.Stop()
		runner.Wait()
		glog.Fatalf("start %s: %v", stim.Name(), err)
	}
	defer stim.Disable()

	loop := fx.NewLoop()
	loop.Interval = conf.LoopInterval
	loop.StopOnError = true
	loop.AddController(&drive.Sine{
		Target: stim,
		Base:   drive.DefaultBase(stim.Channels(), depth),
		Depth:  depth,
	})
	runner.Go("loop", loop)

	if err := runner.Wait(); err != nil {
		glog.Errorf("%s stopped: %v", stim.Name(), err)
	}
	glog.Infof("%d ticks, miss rate %.2f%%", loop.Ticks(), loop.MissRate()*100)
}
