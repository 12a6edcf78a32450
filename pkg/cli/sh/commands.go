package sh

import (
	"bytes"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"
)

func requireArgs(c *ishell.Context, names ...string) bool {
	if len(c.Args) < len(names) {
		c.Err(fmt.Errorf("%s required", names[len(c.Args)]))
		return false
	}
	return true
}

var (
	// EnableCmd enables the Stimulator.
	EnableCmd = ishell.Cmd{
		Name:    "enable",
		Aliases: []string{"en"},
		Help:    "open the ports and set up the channels",
		Func: func(c *ishell.Context) {
			Result(c, ShellFrom(c).Enable())
		},
	}

	// DisableCmd disables the Stimulator.
	DisableCmd = ishell.Cmd{
		Name:    "disable",
		Aliases: []string{"dis"},
		Help:    "delete events and schedules, close the ports",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disable()
			Result(c, nil)
		},
	}

	// ScheduleCmd creates the schedule.
	ScheduleCmd = ishell.Cmd{
		Name:    "schedule",
		Aliases: []string{"sched"},
		Help:    "[SYNC] [FREQ(Hz)]",
		Func: MustBeEnabled(func(c *ishell.Context) {
			Result(c, ShellFrom(c).Schedule(c.Args...))
		}),
	}

	// AddCmd creates events.
	AddCmd = ishell.Cmd{
		Name: "add",
		Help: "[CHANNEL...]",
		Func: MustBeEnabled(func(c *ishell.Context) {
			Result(c, ShellFrom(c).AddEvents(c.Args...))
		}),
	}

	// BeginCmd starts the schedule.
	BeginCmd = ishell.Cmd{
		Name:    "begin",
		Aliases: []string{"start"},
		Help:    "start the schedule on every board",
		Func: MustBeEnabled(func(c *ishell.Context) {
			Result(c, ShellFrom(c).Begin())
		}),
	}

	// HaltCmd stops the schedule.
	HaltCmd = ishell.Cmd{
		Name:    "halt",
		Aliases: []string{"stop"},
		Help:    "stop the schedule on every board",
		Func: MustBeEnabled(func(c *ishell.Context) {
			Result(c, ShellFrom(c).Stim.Halt())
		}),
	}

	// AmpCmd sets the amplitude of a channel.
	AmpCmd = ishell.Cmd{
		Name:    "amp",
		Aliases: []string{"a"},
		Help:    "CHANNEL AMPLITUDE(mA)",
		Func: MustBeEnabled(func(c *ishell.Context) {
			if requireArgs(c, "CHANNEL", "AMPLITUDE") {
				Result(c, ShellFrom(c).SetAmplitude(c.Args[0], c.Args[1]))
			}
		}),
	}

	// PulseWidthCmd sets the pulse width of a channel.
	PulseWidthCmd = ishell.Cmd{
		Name: "pw",
		Help: "CHANNEL PULSE_WIDTH(us)",
		Func: MustBeEnabled(func(c *ishell.Context) {
			if requireArgs(c, "CHANNEL", "PULSE_WIDTH") {
				Result(c, ShellFrom(c).SetPulseWidth(c.Args[0], c.Args[1]))
			}
		}),
	}

	// MaxAmpCmd changes the amplitude ceiling of a channel.
	MaxAmpCmd = ishell.Cmd{
		Name: "maxamp",
		Help: "CHANNEL AMPLITUDE(mA)",
		Func: func(c *ishell.Context) {
			if requireArgs(c, "CHANNEL", "AMPLITUDE") {
				Result(c, ShellFrom(c).SetMaxAmplitude(c.Args[0], c.Args[1]))
			}
		},
	}

	// MaxPulseWidthCmd changes the pulse width ceiling of a channel.
	MaxPulseWidthCmd = ishell.Cmd{
		Name: "maxpw",
		Help: "CHANNEL PULSE_WIDTH(us)",
		Func: func(c *ishell.Context) {
			if requireArgs(c, "CHANNEL", "PULSE_WIDTH") {
				Result(c, ShellFrom(c).SetMaxPulseWidth(c.Args[0], c.Args[1]))
			}
		},
	}

	// UpdateCmd runs a single update.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u", "tick"},
		Help:    "send pending changes once",
		Func: MustBeEnabled(func(c *ishell.Context) {
			Result(c, ShellFrom(c).update())
		}),
	}

	// RunCmd runs the control loop for a while.
	RunCmd = ishell.Cmd{
		Name: "run",
		Help: "DURATION",
		Func: MustBeEnabled(func(c *ishell.Context) {
			if !requireArgs(c, "DURATION") {
				return
			}
			d, err := time.ParseDuration(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid DURATION: %v", err))
				return
			}
			Result(c, ShellFrom(c).Run(d))
		}),
	}

	// StatusCmd prints the status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "show boards, channels and events",
		Func: func(c *ishell.Context) {
			var out bytes.Buffer
			if err := ShellFrom(c).PrintStatus(&out); err != nil {
				c.Err(err)
				return
			}
			c.Print(out.String())
		},
	}
)
