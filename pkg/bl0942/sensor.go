package bl0942

// Sensor receives decoded values of one channel.
type Sensor interface {
	PublishState(float32)
}

// PublishStateFunc is func form of Sensor.
type PublishStateFunc func(float32)

// PublishState implements Sensor.
func (f PublishStateFunc) PublishState(v float32) {
	f(v)
}

// Channel identifies a measured quantity.
type Channel int

// Channels.
const (
	ChannelCurrent Channel = iota
	ChannelPower
	ChannelVoltage
	ChannelFrequency
	ChannelEnergy
	ChannelFastCurrent
)

// Channels lists all channels.
var Channels = []Channel{
	ChannelCurrent,
	ChannelPower,
	ChannelVoltage,
	ChannelFrequency,
	ChannelEnergy,
	ChannelFastCurrent,
}

var channelNames = [...]string{"current", "power", "voltage", "frequency", "energy", "fast_current"}

var channelUnits = [...]string{"A", "W", "V", "Hz", "kWh", "A"}

// String returns the name of the channel.
func (c Channel) String() string {
	if c >= 0 && int(c) < len(channelNames) {
		return channelNames[c]
	}
	return "unknown"
}

// Unit returns the physical unit of the channel.
func (c Channel) Unit() string {
	if c >= 0 && int(c) < len(channelUnits) {
		return channelUnits[c]
	}
	return ""
}

// ChannelByName finds a channel by name.
func ChannelByName(name string) (Channel, bool) {
	for _, c := range Channels {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// Sensors holds the optional per-channel sensors. A nil sensor
// suppresses publishing its channel.
type Sensors struct {
	Current     Sensor
	Power       Sensor
	Voltage     Sensor
	Frequency   Sensor
	Energy      Sensor
	FastCurrent Sensor
}

// Get returns the sensor of a channel.
func (s *Sensors) Get(c Channel) Sensor {
	switch c {
	case ChannelCurrent:
		return s.Current
	case ChannelPower:
		return s.Power
	case ChannelVoltage:
		return s.Voltage
	case ChannelFrequency:
		return s.Frequency
	case ChannelEnergy:
		return s.Energy
	case ChannelFastCurrent:
		return s.FastCurrent
	}
	return nil
}

// Set assigns the sensor of a channel.
func (s *Sensors) Set(c Channel, sensor Sensor) {
	switch c {
	case ChannelCurrent:
		s.Current = sensor
	case ChannelPower:
		s.Power = sensor
	case ChannelVoltage:
		s.Voltage = sensor
	case ChannelFrequency:
		s.Frequency = sensor
	case ChannelEnergy:
		s.Energy = sensor
	case ChannelFastCurrent:
		s.FastCurrent = sensor
	}
}

// References are the divisors converting raw counts into physical units.
type References struct {
	Current float32
	Voltage float32
	Power   float32
	Energy  float32
}
