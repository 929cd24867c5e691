package bl0942

// Phase is the next field group to publish.
type Phase int

// Publishing phases, in order.
const (
	PhaseCurrentPower Phase = iota
	PhaseVoltageFrequency
	PhaseEnergy
	PhaseIdle
)

var phaseNames = [...]string{"current-power", "voltage-frequency", "energy", "idle"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Next is the phase after p. Idle stays idle.
func (p Phase) Next() Phase {
	if p >= PhaseEnergy {
		return PhaseIdle
	}
	return p + 1
}

// FrequencyScale is divided by the raw period to get the line frequency.
const FrequencyScale = 1000000

// Measurement is one decoded value.
type Measurement struct {
	Channel Channel
	Raw     int64
	Value   float32
}

// FieldGroup is the set of measurements published in one step.
type FieldGroup struct {
	Phase        Phase
	Measurements []Measurement
}

// Value looks up the measurement of a channel in the group.
func (g FieldGroup) Value(c Channel) (float32, bool) {
	for _, m := range g.Measurements {
		if m.Channel == c {
			return m.Value, true
		}
	}
	return 0, false
}

// Publisher decodes a validated packet one field group at a time.
type Publisher struct {
	Sensors    Sensors
	References References

	phase Phase
}

// NewPublisher creates an idle Publisher.
func NewPublisher(refs References, sensors Sensors) *Publisher {
	return &Publisher{Sensors: sensors, References: refs, phase: PhaseIdle}
}

// Phase returns the next group to publish.
func (p *Publisher) Phase() Phase {
	return p.phase
}

// Restart schedules all groups of a freshly validated packet. Groups of
// a previous packet not yet published are dropped.
func (p *Publisher) Restart() {
	p.phase = PhaseCurrentPower
}

// Halt stops publishing, used when the packet buffer starts being overwritten.
func (p *Publisher) Halt() {
	p.phase = PhaseIdle
}

// Advance decodes and publishes the next field group. It returns false
// when idle, without touching any sensor.
func (p *Publisher) Advance(pkt Packet) (FieldGroup, bool) {
	g := FieldGroup{Phase: p.phase}
	switch p.phase {
	case PhaseCurrentPower:
		cur := pkt.CurrentRMS()
		pwr := pkt.Power()
		g.Measurements = append(g.Measurements,
			Measurement{Channel: ChannelCurrent, Raw: int64(cur), Value: float32(cur) / p.References.Current},
			Measurement{Channel: ChannelPower, Raw: int64(pwr), Value: float32(pwr) / p.References.Power},
		)
		if fast, ok := pkt.FastCurrentRMS(); ok {
			g.Measurements = append(g.Measurements,
				Measurement{Channel: ChannelFastCurrent, Raw: int64(fast), Value: float32(fast) / p.References.Current})
		}
	case PhaseVoltageFrequency:
		volt := pkt.VoltageRMS()
		period := pkt.Period()
		g.Measurements = append(g.Measurements,
			Measurement{Channel: ChannelVoltage, Raw: int64(volt), Value: float32(volt) / p.References.Voltage},
			Measurement{Channel: ChannelFrequency, Raw: int64(period), Value: frequency(period)},
		)
	case PhaseEnergy:
		pulses := pkt.EnergyPulses()
		g.Measurements = append(g.Measurements,
			Measurement{Channel: ChannelEnergy, Raw: int64(pulses), Value: float32(pulses) / p.References.Energy})
	default:
		return g, false
	}
	for _, m := range g.Measurements {
		if s := p.Sensors.Get(m.Channel); s != nil {
			s.PublishState(m.Value)
		}
	}
	p.phase = p.phase.Next()
	return g, true
}

// frequency converts a period into Hz. A zero period (no line signal) is 0 Hz.
func frequency(period uint32) float32 {
	if period == 0 {
		return 0
	}
	return FrequencyScale / float32(period)
}
