package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/meter.go/pkg/bl0942"
)

// UnknownSensorError reports a sensor name matching no channel.
type UnknownSensorError struct {
	Name string
}

func (e *UnknownSensorError) Error() string {
	return fmt.Sprintf("unknown sensor %q", e.Name)
}

// Load reads a YAML file on top of base. Keys absent in the file keep
// the values of base.
func Load(path string, base *Config) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	conf := *base
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return &conf, nil
}

// Parse decodes YAML content on top of base.
func Parse(data []byte, base *Config) (*Config, error) {
	conf := *base
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks configuration correctness without mutating it.
func Validate(c *Config) error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive: %d", c.Serial.BaudRate)
	}
	if _, err := bl0942.LayoutByName(strings.ToLower(c.Meter.Layout)); err != nil {
		return err
	}
	if c.Meter.PollInterval <= 0 {
		return fmt.Errorf("meter.poll_interval must be positive")
	}
	if c.Meter.UpdateInterval < 0 || c.Meter.StatusInterval < 0 {
		return fmt.Errorf("meter intervals must not be negative")
	}
	refs := []struct {
		name  string
		value float32
	}{
		{"current", c.References.Current},
		{"voltage", c.References.Voltage},
		{"power", c.References.Power},
		{"energy", c.References.Energy},
	}
	for _, ref := range refs {
		if ref.value == 0 {
			return fmt.Errorf("references.%s must not be zero", ref.name)
		}
	}
	seen := make(map[string]bool)
	for _, name := range c.Sensors {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := bl0942.ChannelByName(name); !ok {
			return &UnknownSensorError{Name: name}
		}
		if seen[name] {
			return fmt.Errorf("sensor %q listed twice", name)
		}
		seen[name] = true
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2: %d", c.MQTT.QoS)
	}
	return nil
}

// Normalize applies post-validation normalization. It must be called
// only after Validate.
func Normalize(c *Config) {
	c.Meter.Layout = strings.ToLower(c.Meter.Layout)
	for i, name := range c.Sensors {
		c.Sensors[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if c.WebSocket.Listen != "" && c.WebSocket.Path == "" {
		c.WebSocket.Path = "/"
	}
	if c.MQTT.URL != "" && !strings.Contains(c.MQTT.URL, "://") {
		c.MQTT.URL = "mqtt://" + c.MQTT.URL
	}
}
