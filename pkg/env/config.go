// Package env builds a Stimulator from defaults, environment variables,
// command line flags and YAML config files.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/fes.go/pkg/fes"
	"github.com/robotalks/fes.go/pkg/fes/serial"
	"github.com/robotalks/fes.go/pkg/fes/sim"
)

// NoPort in place of a port name leaves the board unused.
const NoPort = "NONE"

// ChannelConfig defines one channel.
type ChannelConfig struct {
	Name string `yaml:"name"`
	// Number is the 1 based output number, CH_1 to CH_8.
	Number        int    `yaml:"number"`
	Board         int    `yaml:"board"`
	MaxAmplitude  uint8  `yaml:"max_amplitude"`
	MaxPulseWidth uint16 `yaml:"max_pulse_width"`
}

// Config provides the options to build and drive a Stimulator.
type Config struct {
	// File is the YAML file loaded by Load.
	File string `yaml:"-"`

	Name    string   `yaml:"name"`
	Ports   []string `yaml:"ports"`
	Virtual bool     `yaml:"virtual"`

	Sync      uint8   `yaml:"sync"`
	Frequency float64 `yaml:"frequency"`
	// TickDuration in ms overrides Frequency when not zero.
	TickDuration uint16 `yaml:"tick_duration"`
	// EventDelay in ms, default used when zero.
	EventDelay uint8 `yaml:"event_delay"`
	// LoopInterval is the cadence of Stimulator updates.
	LoopInterval time.Duration `yaml:"loop_interval"`

	Channels []ChannelConfig `yaml:"channels"`

	// MQTTBrokerURL enables status publishing.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// HTTPAddr enables the HTTP status server, e.g. :8080.
	HTTPAddr string `yaml:"http"`
}

var defaultConfig = Config{
	Name:         "UECU Board",
	Sync:         0xAA,
	Frequency:    40,
	LoopInterval: 5 * time.Millisecond,
	Channels: []ChannelConfig{
		{Name: "bicep", Number: 1, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "tricep", Number: 2, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "forearm", Number: 3, MaxAmplitude: 100, MaxPulseWidth: 250},
		{Name: "wrist", Number: 4, MaxAmplitude: 100, MaxPulseWidth: 250},
	},
}

func init() {
	if val := os.Getenv("FES_CONFIG"); val != "" {
		defaultConfig.File = val
	}
	if val := os.Getenv("FES_PORTS"); val != "" {
		defaultConfig.Ports = splitPorts(val)
	}
	if val := os.Getenv("FES_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

func splitPorts(val string) (ports []string) {
	for _, port := range strings.Split(val, ",") {
		if port = strings.TrimSpace(port); port != "" {
			ports = append(ports, port)
		}
	}
	return
}

type portFlag struct {
	conf  *Config
	index int
}

func (f *portFlag) String() string {
	if f.conf == nil || f.index >= len(f.conf.Ports) {
		return ""
	}
	return f.conf.Ports[f.index]
}

func (f *portFlag) Set(val string) error {
	for len(f.conf.Ports) <= f.index {
		f.conf.Ports = append(f.conf.Ports, NoPort)
	}
	f.conf.Ports[f.index] = val
	return nil
}

type byteFlag struct {
	val *uint8
}

func (f *byteFlag) String() string {
	if f.val == nil {
		return ""
	}
	return fmt.Sprintf("0x%02X", *f.val)
}

func (f *byteFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return err
	}
	*f.val = uint8(v)
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "YAML config file")
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Stimulator name")
	flag.Var(&portFlag{conf: &defaultConfig, index: 0}, "port", "Serial port of board 1")
	flag.Var(&portFlag{conf: &defaultConfig, index: 1}, "port2", "Serial port of board 2, "+NoPort+" for a single board")
	flag.BoolVar(&defaultConfig.Virtual, "virtual", defaultConfig.Virtual, "Use virtual boards")
	flag.Var(&byteFlag{val: &defaultConfig.Sync}, "sync", "Scheduler sync byte")
	flag.Float64Var(&defaultConfig.Frequency, "freq", defaultConfig.Frequency, "Scheduler frequency in Hz")
	flag.DurationVar(&defaultConfig.LoopInterval, "tick", defaultConfig.LoopInterval, "Update interval")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for status")
	flag.StringVar(&defaultConfig.HTTPAddr, "http", defaultConfig.HTTPAddr, "HTTP status listen address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Ports = append([]string(nil), defaultConfig.Ports...)
	conf.Channels = append([]ChannelConfig(nil), defaultConfig.Channels...)
	return &conf
}

// Load creates a Config from defaults and the config file if one is
// specified. Keys in the file override flags.
func Load() (*Config, error) {
	conf := NewConfig()
	if conf.File != "" {
		if err := conf.LoadFile(conf.File); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// MustLoad loads Config and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile overrides the config with keys in a YAML file.
func (c *Config) LoadFile(fn string) error {
	content, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("config %s: %w", fn, err)
	}
	glog.V(1).Infof("config loaded from %s", fn)
	return nil
}

// BoardPorts returns the ports in use.
func (c *Config) BoardPorts() (ports []string) {
	for _, port := range c.Ports {
		if port != "" && port != NoPort {
			ports = append(ports, port)
		}
	}
	return
}

// Duration returns the scheduler tick in ms.
func (c *Config) Duration() uint16 {
	if c.TickDuration > 0 {
		return c.TickDuration
	}
	return fes.TickDuration(c.Frequency)
}

// BuildChannels creates the configured channels.
func (c *Config) BuildChannels() ([]*fes.Channel, error) {
	channels := make([]*fes.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Number < 1 || ch.Number > fes.NumChannels {
			return nil, fmt.Errorf("channel %q: number %d out of range 1-%d", ch.Name, ch.Number, fes.NumChannels)
		}
		channels = append(channels, fes.NewChannel(ch.Name,
			fes.ChannelIndex(ch.Number-1), ch.Board, ch.MaxAmplitude, ch.MaxPulseWidth))
	}
	return channels, nil
}

// TransportFactory returns the factory of board transports.
func (c *Config) TransportFactory() fes.TransportFactory {
	if c.Virtual {
		return func(string) fes.Transport { return sim.NewDevice() }
	}
	return serial.Factory
}

// NewStimulator creates a disabled Stimulator from config.
func (c *Config) NewStimulator() (*fes.Stimulator, error) {
	channels, err := c.BuildChannels()
	if err != nil {
		return nil, err
	}
	ports := c.BoardPorts()
	if len(ports) == 0 && c.Virtual {
		ports = []string{"virtual"}
	}
	return fes.New(fes.Config{
		Name:         c.Name,
		Ports:        ports,
		Channels:     channels,
		NewTransport: c.TransportFactory(),
		EventDelay:   c.EventDelay,
	})
}

// MustNewStimulator creates Stimulator and fails on error.
func (c *Config) MustNewStimulator() *fes.Stimulator {
	s, err := c.NewStimulator()
	if err != nil {
		log.Fatalln(err)
	}
	return s
}
