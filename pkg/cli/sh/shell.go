// Package sh provides an interactive shell talking to a meter over UART.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
	"github.com/robotalks/meter.go/pkg/config"
	"github.com/robotalks/meter.go/pkg/uart"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool
	Timeout     time.Duration

	Shell   *ishell.Shell
	Config  *config.Config
	Session *Session
	// OpenPort opens the serial port, uart.Open by default.
	OpenPort func(uart.Config) (*uart.Port, error)
}

const (
	shellKey       = "$shell"
	closedPrompt   = "[closed] > "
	defaultTimeout = 2 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	configFile string

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&InitCmd,
		&UpdateCmd,
		&WatchCmd,
		&StatsCmd,
		&LayoutCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&configFile, "config", configFile, "Configuration file in YAML.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     defaultTimeout,

		Shell:    ishell.New(),
		Config:   conf,
		OpenPort: uart.Open,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened meter.
func MustBeOpen(fn func(c *ishell.Context, s *Session)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c).Session
		if s == nil {
			c.Err(fmt.Errorf("meter not opened"))
			return
		}
		fn(c, s)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the meter on the configured device.
func (s *Shell) Open() error {
	s.Close()
	port, err := s.OpenPort(s.Config.UART())
	if err != nil {
		return err
	}
	session, err := OpenSession(s.Config, port)
	if err != nil {
		port.Close()
		return err
	}
	s.Session = session
	s.Shell.SetPrompt(fmt.Sprintf("%s[%s] > ", s.Config.Serial.Device, s.Config.Meter.Layout))
	return nil
}

// Close closes the current meter.
func (s *Shell) Close() {
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			glog.Warningf("close meter: %v", err)
		}
		s.Session = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

// Print prints a value as JSON or with a formatter.
func (s *Shell) Print(c *ishell.Context, v interface{}, format func() string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(format())
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.Serial.Device)
		}
		if err := s.Open(); err != nil {
			glog.Exitf("open %s failed: %v", s.Config.Serial.Device, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

// FormatValues prints readings in channel order.
func FormatValues(channels []bl0942.Channel, values map[bl0942.Channel]float32) string {
	var out string
	for _, c := range channels {
		v, ok := values[c]
		if !ok {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%.3f%s", c, v, c.Unit())
	}
	return out
}

func valuesByName(values map[bl0942.Channel]float32) map[string]float32 {
	named := make(map[string]float32, len(values))
	for c, v := range values {
		named[c.String()] = v
	}
	return named
}

var (
	// OpenCmd opens the meter.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[DEVICE]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Serial.Device = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the meter.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// InitCmd writes the chip init sequence.
	InitCmd = ishell.Cmd{
		Name: "init",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, s *Session) {
			if err := s.Init(ShellFrom(c).Timeout); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// UpdateCmd requests a packet and prints the readings.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context, s *Session) {
			shell := ShellFrom(c)
			values, err := s.Read(shell.Timeout)
			if err != nil {
				c.Err(err)
			}
			shell.Print(c, valuesByName(values), func() string {
				return FormatValues(s.Channels, values)
			})
		}),
	}

	// WatchCmd reads repeatedly.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[COUNT] [INTERVAL]",
		Func: MustBeOpen(func(c *ishell.Context, s *Session) {
			count, interval := 10, time.Second
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				count = n
			}
			if len(c.Args) > 1 {
				d, err := time.ParseDuration(c.Args[1])
				if err != nil {
					c.Err(err)
					return
				}
				interval = d
			}
			shell := ShellFrom(c)
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				values, err := s.Read(shell.Timeout)
				if err != nil {
					c.Err(err)
					continue
				}
				shell.Print(c, valuesByName(values), func() string {
					return time.Now().Format("15:04:05 ") + FormatValues(s.Channels, values)
				})
			}
		}),
	}

	// StatsCmd prints decoder counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context, s *Session) {
			stats := s.Stats()
			ShellFrom(c).Print(c, stats, func() string {
				return fmt.Sprintf("bytes=%d packets=%d checksum-errors=%d resync-errors=%d groups=%d requests=%d",
					stats.Bytes, stats.Packets, stats.ChecksumErrors, stats.ResyncErrors, stats.Groups, stats.Requests)
			})
		}),
	}

	// LayoutCmd shows or switches the packet layout.
	LayoutCmd = ishell.Cmd{
		Name: "layout",
		Help: "[compact|full]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				l, err := bl0942.LayoutByName(s.Config.Meter.Layout)
				if err != nil {
					c.Err(err)
					return
				}
				s.Print(c, l, func() string { return FormatLayout(l) })
				return
			}
			if _, err := bl0942.LayoutByName(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			s.Config.Meter.Layout = c.Args[0]
			if s.Session != nil {
				if err := s.Open(); err != nil {
					c.Err(err)
				}
			}
		},
	}
)

// FormatLayout describes field offsets of a layout.
func FormatLayout(l bl0942.Layout) string {
	fields := []struct {
		name   string
		offset int
	}{
		{"current_rms", l.CurrentRMS},
		{"voltage_rms", l.VoltageRMS},
		{"fast_current_rms", l.FastCurrentRMS},
		{"power", l.Power},
		{"energy_pulses", l.EnergyPulses},
		{"period", l.Period},
		{"status", l.Status},
	}
	out := fmt.Sprintf("%s: %d bytes", l.Name, l.Size)
	for _, f := range fields {
		if f.offset != bl0942.NoField {
			out += fmt.Sprintf(" %s@%d", f.name, f.offset)
		}
	}
	return out
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := config.NewConfig()
	if configFile != "" {
		var err error
		if conf, err = config.Load(configFile, conf); err != nil {
			glog.Exit(err)
		}
	}
	if err := config.Validate(conf); err != nil {
		glog.Exit(err)
	}
	config.Normalize(conf)
	New(conf).WithAutoOpen(true).Run(flag.Args()...)
}
