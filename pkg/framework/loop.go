package framework

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default tick interval.
const DefaultInterval = 5 * time.Millisecond

// ErrLoopStopped is returned by Run when a controller fails and the
// loop is configured to stop on error.
var ErrLoopStopped = errors.New("loop stopped by controller error")

// Loop invokes controllers at a fixed cadence until its context is done.
// Controllers run sequentially on the goroutine calling Run, in the
// order they were added.
type Loop struct {
	Interval time.Duration
	// StopOnError makes Run return after the first tick in which a
	// controller fails.
	StopOnError bool

	controllers []Controller
	runners     []Runnable

	ticks  uint64
	missed uint64
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	return l
}

// AddRunnable adds Runnables started with the loop and stopped with it.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Ticks returns the number of ticks executed.
func (l *Loop) Ticks() uint64 {
	return l.ticks
}

// MissRate returns the fraction of ticks which took longer than Interval.
func (l *Loop) MissRate() float64 {
	if l.ticks == 0 {
		return 0
	}
	return float64(l.missed) / float64(l.ticks)
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var runner *Runner
	if len(l.runners) > 0 {
		runner = NewRunner(ctx)
		for n, r := range l.runners {
			runner.Go("loop-"+strconv.Itoa(n), r)
		}
		defer func() {
			cancel()
			if err := runner.Wait(); err != nil {
				glog.Errorf("loop runner error: %v", err)
			}
		}()
	}

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	iter := &tickContext{ctx: ctx, start: time.Now()}
	for {
		iter.time = time.Now()
		err := l.runIteration(iter, interval)
		if err != nil && l.StopOnError {
			return ErrLoopStopped
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := l.Run(context.Background()); err != nil && err != context.Canceled {
		glog.Fatalln(err)
	}
}

func (l *Loop) runIteration(iter *tickContext, interval time.Duration) error {
	var errs AggregatedError
	for _, ctl := range l.controllers {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error at tick %d: %v", iter.tick, err)
			errs.Add(err)
		}
	}
	if took := time.Since(iter.time); took > interval {
		l.missed++
		glog.V(1).Infof("tick %d took %v, interval %v", iter.tick, took, interval)
	}
	l.ticks++
	iter.tick++
	return errs.Aggregate()
}

type tickContext struct {
	ctx   context.Context
	start time.Time
	time  time.Time
	tick  uint64
}

func (t *tickContext) Context() context.Context { return t.ctx }
func (t *tickContext) Time() time.Time          { return t.time }
func (t *tickContext) Elapsed() time.Duration   { return t.time.Sub(t.start) }
func (t *tickContext) Tick() uint64             { return t.tick }
