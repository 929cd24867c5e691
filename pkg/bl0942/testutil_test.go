package bl0942

import (
	"bytes"
	"errors"
)

type testStream struct {
	in       bytes.Buffer
	out      bytes.Buffer
	writeErr error
}

func (s *testStream) inject(p ...byte) *testStream {
	s.in.Write(p)
	return s
}

func (s *testStream) Buffered() int {
	return s.in.Len()
}

func (s *testStream) ReadByte() (byte, error) {
	b, err := s.in.ReadByte()
	if err != nil {
		return 0, ErrNoData
	}
	return b, nil
}

func (s *testStream) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.out.Write(p)
}

// takeWritten returns and clears bytes written so far.
func (s *testStream) takeWritten() []byte {
	b := append([]byte(nil), s.out.Bytes()...)
	s.out.Reset()
	return b
}

var errTestWrite = errors.New("write failed")

type testPacket struct {
	current, voltage, period, energy uint32
	power                            int32
}

func (p testPacket) build(l Layout) []byte {
	pkt := NewPacket(l)
	PutUint24(pkt.Data[l.CurrentRMS:], p.current)
	PutUint24(pkt.Data[l.VoltageRMS:], p.voltage)
	PutUint24(pkt.Data[l.Power:], uint32(p.power))
	PutUint24(pkt.Data[l.Period:], p.period)
	PutUint24(pkt.Data[l.EnergyPulses:], p.energy)
	return pkt.Seal().Bytes()
}

type recordedValue struct {
	channel Channel
	value   float32
}

type testSensors struct {
	values []recordedValue
}

func (r *testSensors) sensor(c Channel) Sensor {
	return PublishStateFunc(func(v float32) {
		r.values = append(r.values, recordedValue{channel: c, value: v})
	})
}

func (r *testSensors) all() Sensors {
	var s Sensors
	for _, c := range Channels {
		s.Set(c, r.sensor(c))
	}
	return s
}

func (r *testSensors) take() []recordedValue {
	v := r.values
	r.values = nil
	return v
}

var testRefs = References{Current: 10, Voltage: 100, Power: 2, Energy: 4}
