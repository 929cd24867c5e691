package bl0942

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validPacket(t *testing.T, l Layout, p testPacket) Packet {
	a := NewAssembler(l)
	events := feedAll(a, p.build(l))
	require.Equal(t, FrameChecksumOK, events[len(events)-1])
	return a.Packet()
}

func TestPhase(t *testing.T) {
	require.Equal(t, PhaseVoltageFrequency, PhaseCurrentPower.Next())
	require.Equal(t, PhaseEnergy, PhaseVoltageFrequency.Next())
	require.Equal(t, PhaseIdle, PhaseEnergy.Next())
	require.Equal(t, PhaseIdle, PhaseIdle.Next())
	require.Equal(t, "idle", PhaseIdle.String())
	require.Equal(t, "current-power", PhaseCurrentPower.String())
}

func TestPublisherGroups(t *testing.T) {
	var rec testSensors
	pub := NewPublisher(testRefs, rec.all())
	require.Equal(t, PhaseIdle, pub.Phase())

	pkt := validPacket(t, CompactLayout, testPacket{
		current: 1000,
		voltage: 23000,
		power:   -400,
		period:  20000,
		energy:  100,
	})
	pub.Restart()

	g, ok := pub.Advance(pkt)
	require.True(t, ok)
	require.Equal(t, PhaseCurrentPower, g.Phase)
	require.Equal(t, []Measurement{
		{Channel: ChannelCurrent, Raw: 1000, Value: 100},
		{Channel: ChannelPower, Raw: -400, Value: -200},
	}, g.Measurements)
	require.Equal(t, []recordedValue{{ChannelCurrent, 100}, {ChannelPower, -200}}, rec.take())

	g, ok = pub.Advance(pkt)
	require.True(t, ok)
	require.Equal(t, PhaseVoltageFrequency, g.Phase)
	v, _ := g.Value(ChannelVoltage)
	require.Equal(t, float32(230), v)
	f, _ := g.Value(ChannelFrequency)
	require.Equal(t, float32(50), f)
	require.Equal(t, []recordedValue{{ChannelVoltage, 230}, {ChannelFrequency, 50}}, rec.take())

	g, ok = pub.Advance(pkt)
	require.True(t, ok)
	require.Equal(t, PhaseEnergy, g.Phase)
	e, _ := g.Value(ChannelEnergy)
	require.Equal(t, float32(25), e)
	require.Equal(t, []recordedValue{{ChannelEnergy, 25}}, rec.take())
	require.Equal(t, PhaseIdle, pub.Phase())

	for i := 0; i < 5; i++ {
		_, ok = pub.Advance(pkt)
		require.False(t, ok)
	}
	require.Empty(t, rec.take())
	require.Equal(t, PhaseIdle, pub.Phase())
}

func TestPublisherMissingSensors(t *testing.T) {
	var rec testSensors
	pub := NewPublisher(testRefs, Sensors{Voltage: rec.sensor(ChannelVoltage)})
	pkt := validPacket(t, CompactLayout, testPacket{voltage: 100, period: 1})
	pub.Restart()

	for i := 0; i < 3; i++ {
		_, ok := pub.Advance(pkt)
		require.True(t, ok)
	}
	require.Equal(t, []recordedValue{{ChannelVoltage, 1}}, rec.take())
	_, ok := pub.Advance(pkt)
	require.False(t, ok)
}

func TestPublisherZeroPeriod(t *testing.T) {
	pub := NewPublisher(testRefs, Sensors{})
	pkt := validPacket(t, CompactLayout, testPacket{})
	pub.Restart()
	pub.Advance(pkt)
	g, ok := pub.Advance(pkt)
	require.True(t, ok)
	f, found := g.Value(ChannelFrequency)
	require.True(t, found)
	require.Equal(t, float32(0), f)
}

func TestPublisherFastCurrent(t *testing.T) {
	var rec testSensors
	pub := NewPublisher(testRefs, rec.all())
	pkt := validPacket(t, FullLayout, testPacket{current: 20})
	PutUint24(pkt.Data[FullLayout.FastCurrentRMS:], 30)
	pub.Restart()
	g, ok := pub.Advance(pkt)
	require.True(t, ok)
	fast, found := g.Value(ChannelFastCurrent)
	require.True(t, found)
	require.Equal(t, float32(3), fast)
	require.Equal(t, []recordedValue{{ChannelCurrent, 2}, {ChannelPower, 0}, {ChannelFastCurrent, 3}}, rec.take())
}

func TestPublisherRestartDropsStaleGroups(t *testing.T) {
	pub := NewPublisher(testRefs, Sensors{})
	pkt := validPacket(t, CompactLayout, testPacket{})
	pub.Restart()
	pub.Advance(pkt)
	require.Equal(t, PhaseVoltageFrequency, pub.Phase())
	pub.Restart()
	require.Equal(t, PhaseCurrentPower, pub.Phase())
	pub.Halt()
	_, ok := pub.Advance(pkt)
	require.False(t, ok)
}
