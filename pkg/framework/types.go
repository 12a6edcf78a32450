package framework

import (
	"context"
	"time"
)

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Controller is invoked once per loop tick.
type Controller interface {
	Control(TickContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(TickContext) error

// Control implements Controller.
func (f ControlFunc) Control(tc TickContext) error {
	return f(tc)
}

// TickContext provides the context of the current tick.
type TickContext interface {
	// Context retrieves context.Context of the loop.
	Context() context.Context
	// Time is when the tick started.
	Time() time.Time
	// Elapsed is the time since the loop started.
	Elapsed() time.Duration
	// Tick is the sequence number of the tick, starting from 0.
	Tick() uint64
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}
