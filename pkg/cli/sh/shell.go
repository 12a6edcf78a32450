package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/fes.go/pkg/env"
	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

// Shell provides ishell backed interactive shell driving a Stimulator.
// Every command runs on the shell goroutine, so the Stimulator is never
// accessed concurrently.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoEnable  bool

	Shell  *ishell.Shell
	Config *env.Config
	Stim   *fes.Stimulator
}

const (
	shellKey       = "$shell"
	disabledPrompt = "[disabled] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&EnableCmd,
		&DisableCmd,
		&ScheduleCmd,
		&AddCmd,
		&BeginCmd,
		&HaltCmd,
		&AmpCmd,
		&PulseWidthCmd,
		&MaxAmpCmd,
		&MaxPulseWidthCmd,
		&UpdateCmd,
		&RunCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config, stim *fes.Stimulator) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Stim:   stim,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(disabledPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeEnabled wraps command func requires an enabled Stimulator.
func MustBeEnabled(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).Stim.IsEnabled() {
			c.Err(fes.ErrNotEnabled)
			return
		}
		fn(c)
	}
}

// Result prints the outcome of a command.
func Result(c *ishell.Context, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	if !ShellFrom(c).OutputJSON {
		c.Println("OK")
	}
}

// WithAutoEnable sets AutoEnable.
func (s *Shell) WithAutoEnable(en bool) *Shell {
	s.AutoEnable = en
	return s
}

func (s *Shell) updatePrompt() {
	if s.Shell == nil {
		return
	}
	if s.Stim.IsEnabled() {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Stim.Name()))
		return
	}
	s.Shell.SetPrompt(disabledPrompt)
}

// Enable enables the Stimulator.
func (s *Shell) Enable() error {
	err := s.Stim.Enable()
	s.updatePrompt()
	return err
}

// Disable disables the Stimulator.
func (s *Shell) Disable() {
	s.Stim.Disable()
	s.updatePrompt()
}

// Schedule creates the schedule. The optional arguments override the
// configured sync byte and frequency.
func (s *Shell) Schedule(args ...string) error {
	syncByte, duration := s.Config.Sync, s.Config.Duration()
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid SYNC: %w", err)
		}
		syncByte = uint8(v)
	}
	if len(args) > 1 {
		freq, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid FREQ: %w", err)
		}
		duration = fes.TickDuration(freq)
	}
	err := s.Stim.CreateSchedulerWithDuration(syncByte, duration)
	s.updatePrompt()
	return err
}

// AddEvents creates the events of the named channels, or of all channels
// if none is named.
func (s *Shell) AddEvents(names ...string) error {
	if len(names) == 0 {
		return s.Stim.AddEvents(fes.StimEvent)
	}
	for _, name := range names {
		if err := s.Stim.AddEvent(name, fes.StimEvent); err != nil {
			return err
		}
	}
	return nil
}

// Begin starts the schedule.
func (s *Shell) Begin() error {
	err := s.Stim.Begin()
	s.updatePrompt()
	return err
}

// SetAmplitude sets the amplitude and sends it immediately.
func (s *Shell) SetAmplitude(name, val string) error {
	v, err := strconv.ParseUint(val, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid AMPLITUDE: %w", err)
	}
	if err = s.Stim.SetAmplitude(name, uint8(v)); err != nil {
		return err
	}
	return s.update()
}

// SetPulseWidth sets the pulse width and sends it immediately.
func (s *Shell) SetPulseWidth(name, val string) error {
	v, err := strconv.ParseUint(val, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid PULSE_WIDTH: %w", err)
	}
	if err = s.Stim.SetPulseWidth(name, uint16(v)); err != nil {
		return err
	}
	return s.update()
}

// SetMaxAmplitude changes the amplitude ceiling of a channel.
func (s *Shell) SetMaxAmplitude(name, val string) error {
	v, err := strconv.ParseUint(val, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid AMPLITUDE: %w", err)
	}
	return s.Stim.UpdateMaxAmplitude(name, uint8(v))
}

// SetMaxPulseWidth changes the pulse width ceiling of a channel.
func (s *Shell) SetMaxPulseWidth(name, val string) error {
	v, err := strconv.ParseUint(val, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid PULSE_WIDTH: %w", err)
	}
	return s.Stim.UpdateMaxPulseWidth(name, uint16(v))
}

func (s *Shell) update() error {
	err := s.Stim.Update()
	s.updatePrompt()
	return err
}

// Run drives the Stimulator from a control loop for the given duration,
// blocking the shell meanwhile.
func (s *Shell) Run(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	loop := fx.NewLoop()
	if s.Config.LoopInterval > 0 {
		loop.Interval = s.Config.LoopInterval
	}
	loop.StopOnError = true
	loop.AddController(s.Stim)
	err := loop.Run(ctx)
	s.updatePrompt()
	if err == context.DeadlineExceeded {
		return nil
	}
	return err
}

// PrintStatus writes the current status of the Stimulator.
func (s *Shell) PrintStatus(w io.Writer) error {
	status := telemetry.StatusOf(s.Stim, "", time.Now())
	if s.OutputJSON {
		return json.NewEncoder(w).Encode(status)
	}
	state := "disabled"
	if status.Enabled {
		state = "enabled"
	}
	fmt.Fprintf(w, "%s: %s\n", status.Name, state)
	for n := 0; n < s.Stim.NumBoards(); n++ {
		sched := s.Stim.Scheduler(n)
		fmt.Fprintf(w, "board %d: %s schedule=0x%02x sync=0x%02x tick=%dms events=%d\n",
			n, sched.State(), sched.ScheduleID(), sched.SyncByte(), sched.Duration(), len(sched.Events()))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tOUTPUT\tBOARD\tAMP\tPW")
	for _, ch := range status.Channels {
		fmt.Fprintf(tw, "%s\tCH_%d\t%d\t%d/%d\t%d/%d\n", ch.Name, ch.Number, ch.Board,
			ch.Amplitude, ch.MaxAmplitude, ch.PulseWidth, ch.MaxPulseWidth)
	}
	return tw.Flush()
}

// Exec runs the shell.
func (s *Shell) Exec(args ...string) {
	if s.AutoEnable {
		if s.Interactive {
			s.Shell.Printf("Enabling %s ...\n", s.Stim.Name())
		}
		if err := s.Enable(); err != nil {
			log.Fatalf("enable %q failed: %v", s.Stim.Name(), err)
		}
	}
	defer s.Stim.Disable()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := env.MustLoad()
	New(conf, conf.MustNewStimulator()).WithAutoEnable(true).Exec(flag.Args()...)
}
