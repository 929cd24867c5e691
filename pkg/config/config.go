// Package config loads meter configuration from defaults, environment,
// command line flags and an optional YAML file.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/meter.go/pkg/bl0942"
	"github.com/robotalks/meter.go/pkg/uart"
)

// Config is the configuration of a meter daemon.
type Config struct {
	Serial     SerialConfig    `yaml:"serial"`
	Meter      MeterConfig     `yaml:"meter"`
	References ReferenceConfig `yaml:"references"`
	Sensors    []string        `yaml:"sensors"`
	MQTT       MQTTConfig      `yaml:"mqtt"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
}

// SerialConfig describes the UART.
type SerialConfig struct {
	Device   string        `yaml:"device"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MeterConfig controls decoding and polling.
type MeterConfig struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Labels      map[string]string `yaml:"labels"`
	Layout      string            `yaml:"layout"`

	// PollInterval is the tick of the decoder loop.
	PollInterval time.Duration `yaml:"poll_interval"`

	// UpdateInterval is how often a packet is requested.
	UpdateInterval time.Duration `yaml:"update_interval"`

	// StatusInterval is how often decoder counters are published, 0 disables.
	StatusInterval time.Duration `yaml:"status_interval"`

	SkipInit  bool          `yaml:"skip_init"`
	InitDelay time.Duration `yaml:"init_delay"`
}

// ReferenceConfig holds the unit conversion divisors.
type ReferenceConfig struct {
	Current float32 `yaml:"current"`
	Voltage float32 `yaml:"voltage"`
	Power   float32 `yaml:"power"`
	Energy  float32 `yaml:"energy"`
}

// MQTTConfig configures publishing to a broker. Empty URL disables it.
type MQTTConfig struct {
	URL    string `yaml:"url"`
	QoS    byte   `yaml:"qos"`
	Retain bool   `yaml:"retain"`
}

// WebSocketConfig configures the live endpoint. Empty Listen disables it.
type WebSocketConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Reference values for the BL0942 with the common 1mΩ shunt and a
// 3.9kΩ*5/390Ω voltage divider.
const (
	DefaultCurrentReference = 251213.46469622
	DefaultVoltageReference = 15873.35944299
	DefaultPowerReference   = 596
	DefaultEnergyReference  = 3304.61127328
)

var defaultConfig = Config{
	Serial: SerialConfig{
		Device:   "/dev/ttyS0",
		BaudRate: uart.DefaultBaudRate,
		Timeout:  uart.DefaultTimeout,
	},
	Meter: MeterConfig{
		Layout:         bl0942.CompactLayout.Name,
		PollInterval:   20 * time.Millisecond,
		UpdateInterval: 60 * time.Second,
		InitDelay:      10 * time.Millisecond,
	},
	References: ReferenceConfig{
		Current: DefaultCurrentReference,
		Voltage: DefaultVoltageReference,
		Power:   DefaultPowerReference,
		Energy:  DefaultEnergyReference,
	},
	Sensors: []string{"current", "power", "voltage", "frequency", "energy"},
}

func init() {
	if val := os.Getenv("METER_DEVICE"); val != "" {
		defaultConfig.Serial.Device = val
	}
	if val := os.Getenv("METER_BAUD_RATE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.Serial.BaudRate = n
		}
	}
	if val := os.Getenv("METER_ID"); val != "" {
		defaultConfig.Meter.ID = val
	}
	if val := os.Getenv("METER_LAYOUT"); val != "" {
		defaultConfig.Meter.Layout = val
	}
	if val := os.Getenv("METER_MQTT_URL"); val != "" {
		defaultConfig.MQTT.URL = val
	}
	if val := os.Getenv("METER_WS_LISTEN"); val != "" {
		defaultConfig.WebSocket.Listen = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Serial.Device, "device", defaultConfig.Serial.Device, "Serial device of the meter.")
	flag.IntVar(&defaultConfig.Serial.BaudRate, "baud", defaultConfig.Serial.BaudRate, "Serial baud rate.")
	flag.StringVar(&defaultConfig.Meter.ID, "id", defaultConfig.Meter.ID, "Meter ID, derived from machine ID if empty.")
	flag.StringVar(&defaultConfig.Meter.Layout, "layout", defaultConfig.Meter.Layout, "Packet layout: compact or full.")
	flag.DurationVar(&defaultConfig.Meter.PollInterval, "poll", defaultConfig.Meter.PollInterval, "Decoder poll interval.")
	flag.DurationVar(&defaultConfig.Meter.UpdateInterval, "update", defaultConfig.Meter.UpdateInterval, "Packet request interval.")
	flag.BoolVar(&defaultConfig.Meter.SkipInit, "skip-init", defaultConfig.Meter.SkipInit, "Don't write the chip init sequence.")
	flag.StringVar(&defaultConfig.MQTT.URL, "mqtt", defaultConfig.MQTT.URL, "MQTT broker URL, e.g. mqtt://localhost:1883/meters/")
	flag.StringVar(&defaultConfig.WebSocket.Listen, "ws", defaultConfig.WebSocket.Listen, "Listen address of the WebSocket endpoint.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Sensors = append([]string(nil), defaultConfig.Sensors...)
	return &conf
}

// UART returns the serial port configuration.
func (c *Config) UART() uart.Config {
	return uart.Config{
		Device:   c.Serial.Device,
		BaudRate: c.Serial.BaudRate,
		Timeout:  c.Serial.Timeout,
	}
}

// Channels resolves the enabled sensor names.
func (c *Config) Channels() ([]bl0942.Channel, error) {
	channels := make([]bl0942.Channel, 0, len(c.Sensors))
	for _, name := range c.Sensors {
		ch, ok := bl0942.ChannelByName(name)
		if !ok {
			return nil, &UnknownSensorError{Name: name}
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// DeviceConfig builds the device configuration with the sensors.
func (c *Config) DeviceConfig(sensors bl0942.Sensors) (bl0942.Config, error) {
	layout, err := bl0942.LayoutByName(c.Meter.Layout)
	if err != nil {
		return bl0942.Config{}, err
	}
	return bl0942.Config{
		Layout: layout,
		References: bl0942.References{
			Current: c.References.Current,
			Voltage: c.References.Voltage,
			Power:   c.References.Power,
			Energy:  c.References.Energy,
		},
		Sensors:   sensors,
		InitDelay: c.Meter.InitDelay,
	}, nil
}
