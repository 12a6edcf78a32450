package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/serial"
	"github.com/robotalks/fes.go/pkg/fes/wire"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

var (
	portName = os.Getenv("FES_MONITOR_PORT")
	listOnly bool
)

func init() {
	flag.StringVar(&portName, "port", portName, "Serial port to monitor.")
	flag.BoolVar(&listOnly, "list", listOnly, "List serial ports and exit.")
}

// monitor reads frames from r until ctx is done or r fails. A read of
// zero bytes is a timeout and flushes any partial frame.
func monitor(ctx context.Context, r io.Reader, route wire.Route, fn func(wire.Result)) error {
	var parser wire.Parser
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if raw := parser.Parse(b); raw != nil {
				fn(wire.Inspect(raw, route))
			}
		}
		if err != nil {
			if raw := parser.Timeout(); raw != nil {
				fn(wire.Inspect(raw, route))
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			if raw := parser.Timeout(); raw != nil {
				fn(wire.Inspect(raw, route))
			}
		}
	}
	return ctx.Err()
}

func describe(r wire.Result) string {
	if r.Valid() {
		return fmt.Sprintf("%-18s ok  %s", r.Kind, wire.Format(r.Raw))
	}
	return fmt.Sprintf("%-18s ERR %s: %v", r.Kind, wire.Format(r.Raw), r.Err)
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	if listOnly {
		ports, err := serial.Ports()
		if err != nil {
			log.Fatalln(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if portName == "" {
		log.Fatalln("-port required")
	}

	port := serial.NewPort()
	if err := port.Open(portName); err != nil {
		log.Fatalln(err)
	}
	if err := port.Configure(); err != nil {
		port.Close()
		log.Fatalln(err)
	}
	defer port.Close()

	runner := fx.NewRunner(context.Background()).HandleSignals()
	runner.Go("monitor", fx.RunFunc(func(ctx context.Context) error {
		return monitor(ctx, port, wire.DefaultRoute, func(r wire.Result) {
			log.Println(describe(r))
		})
	}))
	if err := runner.Wait(); err != nil {
		glog.Errorf("monitor %s: %v", portName, err)
	}
}
