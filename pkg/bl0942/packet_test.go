package bl0942

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint24(t *testing.T) {
	require.Equal(t, uint32(0x030201), Uint24([]byte{0x01, 0x02, 0x03}))
	require.Equal(t, uint32(0xFFFFFF), Uint24([]byte{0xFF, 0xFF, 0xFF}))
	require.Equal(t, uint32(0), Uint24([]byte{0, 0, 0}))
}

func TestInt24(t *testing.T) {
	testCases := []struct {
		in     []byte
		expect int32
	}{
		{[]byte{0xFF, 0xFF, 0xFF}, -1},
		{[]byte{0x00, 0x00, 0x80}, -0x800000},
		{[]byte{0xFF, 0xFF, 0x7F}, 0x7FFFFF},
		{[]byte{0x01, 0x02, 0x03}, 0x030201},
		{[]byte{0x00, 0x00, 0x00}, 0},
	}
	for _, tc := range testCases {
		require.Equalf(t, tc.expect, Int24(tc.in), "% X", tc.in)
	}
}

func TestPutUint24(t *testing.T) {
	b := make([]byte, 3)
	PutUint24(b, 0x12345678)
	require.Equal(t, []byte{0x78, 0x56, 0x34}, b)
	require.Equal(t, uint32(0x345678), Uint24(b))
}

func TestLayouts(t *testing.T) {
	for name, l := range Layouts {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Validate())
			require.Equal(t, name, l.Name)
			found, err := LayoutByName(name)
			require.NoError(t, err)
			require.Equal(t, l, found)
		})
	}
	_, err := LayoutByName("bogus")
	require.Error(t, err)

	bad := CompactLayout
	bad.EnergyPulses = 14
	require.Error(t, bad.Validate())
	bad = CompactLayout
	bad.Status = 0
	require.Error(t, bad.Validate())
}

func TestPacketFields(t *testing.T) {
	pkt := NewPacket(FullLayout)
	PutUint24(pkt.Data[FullLayout.CurrentRMS:], 1000)
	PutUint24(pkt.Data[FullLayout.VoltageRMS:], 2000)
	PutUint24(pkt.Data[FullLayout.FastCurrentRMS:], 3000)
	PutUint24(pkt.Data[FullLayout.Power:], 0xFFFFF6)
	PutUint24(pkt.Data[FullLayout.EnergyPulses:], 42)
	PutUint24(pkt.Data[FullLayout.Period:], 20000)
	PutUint24(pkt.Data[FullLayout.Status:], 0x0102)
	pkt = pkt.Seal()

	require.Equal(t, PacketHeader, pkt.Data[0])
	require.Equal(t, uint32(1000), pkt.CurrentRMS())
	require.Equal(t, uint32(2000), pkt.VoltageRMS())
	require.Equal(t, int32(-10), pkt.Power())
	require.Equal(t, uint32(42), pkt.EnergyPulses())
	require.Equal(t, uint32(20000), pkt.Period())
	fast, ok := pkt.FastCurrentRMS()
	require.True(t, ok)
	require.Equal(t, uint32(3000), fast)
	status, ok := pkt.Status()
	require.True(t, ok)
	require.Equal(t, uint32(0x0102), status)

	compact := NewPacket(CompactLayout)
	_, ok = compact.FastCurrentRMS()
	require.False(t, ok)
	_, ok = compact.Status()
	require.False(t, ok)
}

func TestPacketChecksum(t *testing.T) {
	pkt := NewPacket(CompactLayout)
	pkt.Data[0] = PacketHeader
	sum := ReadCommand + PacketHeader
	for i := 1; i < CompactLayout.PayloadSize(); i++ {
		pkt.Data[i] = byte(i * 7)
		sum += byte(i * 7)
	}
	require.Equal(t, sum^0xFF, pkt.Checksum())
	pkt = pkt.Seal()
	require.Equal(t, sum^0xFF, pkt.Data[CompactLayout.Size-1])
}
