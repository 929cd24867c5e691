package bl0942

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type deviceTestEnv struct {
	t       *testing.T
	stream  *testStream
	sensors testSensors
	errs    []error
	groups  []FieldGroup
	device  *Device
}

func newDeviceTestEnv(t *testing.T, l Layout) *deviceTestEnv {
	env := &deviceTestEnv{t: t, stream: &testStream{}}
	env.device = NewDevice(env.stream, Config{
		Layout:     l,
		References: testRefs,
		Sensors:    env.sensors.all(),
		Reporter: ReportErrorFunc(func(err error) {
			env.errs = append(env.errs, err)
		}),
	})
	env.device.OnGroup = func(g FieldGroup) {
		env.groups = append(env.groups, g)
	}
	return env
}

func (e *deviceTestEnv) poll(n int) *deviceTestEnv {
	for i := 0; i < n; i++ {
		require.NoError(e.t, e.device.Poll())
	}
	return e
}

func (e *deviceTestEnv) phases() []Phase {
	phases := make([]Phase, 0, len(e.groups))
	for _, g := range e.groups {
		phases = append(phases, g.Phase)
	}
	e.groups = nil
	return phases
}

func TestDeviceDefaults(t *testing.T) {
	d := NewDevice(&testStream{}, Config{})
	require.Equal(t, CompactLayout, d.Layout())
	require.Equal(t, DefaultInit, d.Init)
	require.Equal(t, PhaseIdle, d.Publisher().Phase())
	require.False(t, d.Assembler().InFrame())
}

func TestDeviceSetup(t *testing.T) {
	s := &testStream{}
	d := NewDevice(s, Config{})
	require.NoError(t, d.Setup())
	var expect []byte
	for _, cmd := range DefaultInit {
		expect = append(expect, cmd...)
	}
	require.Equal(t, expect, s.takeWritten())

	s.writeErr = errTestWrite
	require.Equal(t, errTestWrite, d.Setup())
}

func TestDeviceReadRequest(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	env.poll(1)
	require.Empty(t, env.stream.takeWritten())

	env.device.RequestUpdate()
	require.True(t, env.device.Pending())
	env.poll(1)
	require.Equal(t, []byte{0x58, 0xAA}, env.stream.takeWritten())
	require.False(t, env.device.Pending())
	env.poll(3)
	require.Empty(t, env.stream.takeWritten())

	// a request goes out even while a packet is being received
	env.stream.inject(PacketHeader, 0x01)
	env.device.RequestUpdate()
	env.poll(1)
	require.Equal(t, []byte{0x58, 0xAA}, env.stream.takeWritten())
	require.Equal(t, uint64(2), env.device.Stats().Requests)

	env.stream.writeErr = errTestWrite
	env.device.RequestUpdate()
	require.Equal(t, errTestWrite, env.device.Poll())
	require.True(t, env.device.Pending())
}

func TestDevicePublishesOneGroupPerTick(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	env.stream.inject(testPacket{current: 1000, voltage: 100, period: 20000, energy: 8, power: 6}.build(CompactLayout)...)

	// the first tick only drains input
	env.poll(1)
	require.Empty(t, env.groups)
	require.Equal(t, PhaseCurrentPower, env.device.Publisher().Phase())

	env.poll(1)
	require.Equal(t, []Phase{PhaseCurrentPower}, env.phases())
	require.Equal(t, []recordedValue{{ChannelCurrent, 100}, {ChannelPower, 3}}, env.sensors.take())
	env.poll(1)
	require.Equal(t, []Phase{PhaseVoltageFrequency}, env.phases())
	require.Equal(t, []recordedValue{{ChannelVoltage, 1}, {ChannelFrequency, 50}}, env.sensors.take())
	env.poll(1)
	require.Equal(t, []Phase{PhaseEnergy}, env.phases())
	require.Equal(t, []recordedValue{{ChannelEnergy, 2}}, env.sensors.take())
	env.poll(5)
	require.Empty(t, env.phases())
	require.Empty(t, env.sensors.take())

	stats := env.device.Stats()
	require.Equal(t, uint64(CompactLayout.Size), stats.Bytes)
	require.Equal(t, uint64(1), stats.Packets)
	require.Equal(t, uint64(3), stats.Groups)
	require.Empty(t, env.errs)
}

func TestDeviceChecksumFailureNoPublish(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	in := testPacket{current: 1000}.build(CompactLayout)
	in[2]++
	env.stream.inject(in...)
	env.poll(6)
	require.Empty(t, env.groups)
	require.Empty(t, env.sensors.take())
	require.Len(t, env.errs, 1)
	require.IsType(t, &ChecksumError{}, env.errs[0])
	require.Equal(t, uint64(1), env.device.Stats().ChecksumErrors)
}

func TestDeviceResyncErrors(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	env.stream.inject(0x01, 0x02, 0x03)
	env.poll(1)
	require.Equal(t, []error{&ResyncError{0x01}, &ResyncError{0x02}, &ResyncError{0x03}}, env.errs)
	require.Equal(t, uint64(3), env.device.Stats().ResyncErrors)
	require.Equal(t, CompactLayout.Size, env.device.Assembler().Offset())
}

func TestDeviceNewPacketRestartsPublishing(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	env.stream.inject(testPacket{current: 10}.build(CompactLayout)...)
	env.poll(2)
	require.Equal(t, []Phase{PhaseCurrentPower}, env.phases())
	env.sensors.take()

	// a header of a new packet stops publishing the old one
	next := testPacket{current: 20}.build(CompactLayout)
	env.stream.inject(next[:5]...)
	env.poll(1)
	require.Equal(t, PhaseIdle, env.device.Publisher().Phase())
	env.poll(3)
	require.Empty(t, env.phases())

	env.stream.inject(next[5:]...)
	env.poll(2)
	require.Equal(t, []Phase{PhaseCurrentPower}, env.phases())
	require.Equal(t, []recordedValue{{ChannelCurrent, 2}, {ChannelPower, 0}}, env.sensors.take())
}

func TestDeviceBackToBackPackets(t *testing.T) {
	env := newDeviceTestEnv(t, FullLayout)
	first := testPacket{current: 10}.build(FullLayout)
	second := testPacket{current: 30}.build(FullLayout)
	env.stream.inject(append(first, second...)...)
	env.poll(1)
	require.Equal(t, uint64(2), env.device.Stats().Packets)
	env.poll(3)
	require.Equal(t, []Phase{PhaseCurrentPower, PhaseVoltageFrequency, PhaseEnergy}, env.phases())
	values := env.sensors.take()
	require.Equal(t, recordedValue{ChannelCurrent, 3}, values[0])
}

func TestDeviceDecodesReadings(t *testing.T) {
	env := newDeviceTestEnv(t, CompactLayout)
	env.device.Publisher().References.Current = 10
	env.stream.inject(testPacket{current: 1000, period: 20000}.build(CompactLayout)...)
	env.poll(3)
	values := env.sensors.take()
	require.Contains(t, values, recordedValue{ChannelCurrent, 100})
	require.Contains(t, values, recordedValue{ChannelFrequency, 50})
}
