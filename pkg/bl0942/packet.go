package bl0942

import "fmt"

// Protocol bytes.
const (
	ReadCommand  byte = 0x58
	FullPacket   byte = 0xAA
	PacketHeader byte = 0x55
	WriteCommand byte = 0xA8
)

// FieldSize is the size of every measurement field in bytes.
const FieldSize = 3

// NoField marks a field not carried by a Layout.
const NoField = -1

// Layout describes the positions of fields in a response packet.
// The header is always at offset 0 and the checksum is the last byte.
type Layout struct {
	Name           string
	Size           int
	CurrentRMS     int
	VoltageRMS     int
	FastCurrentRMS int
	Power          int
	EnergyPulses   int
	Period         int
	Status         int
}

var (
	// CompactLayout is the 17-byte packet:
	// header, I_RMS, V_RMS, WATT, period, CF_CNT, checksum.
	CompactLayout = Layout{
		Name:           "compact",
		Size:           17,
		CurrentRMS:     1,
		VoltageRMS:     4,
		FastCurrentRMS: NoField,
		Power:          7,
		Period:         10,
		EnergyPulses:   13,
		Status:         NoField,
	}

	// FullLayout is the 23-byte full packet of the chip:
	// header, I_RMS, V_RMS, I_FAST_RMS, WATT, CF_CNT, FREQ, STATUS, checksum.
	FullLayout = Layout{
		Name:           "full",
		Size:           23,
		CurrentRMS:     1,
		VoltageRMS:     4,
		FastCurrentRMS: 7,
		Power:          10,
		EnergyPulses:   13,
		Period:         16,
		Status:         19,
	}

	// Layouts lists known layouts by name.
	Layouts = map[string]Layout{
		CompactLayout.Name: CompactLayout,
		FullLayout.Name:    FullLayout,
	}
)

// LayoutByName looks up a known layout.
func LayoutByName(name string) (Layout, error) {
	l, ok := Layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown packet layout %q", name)
	}
	return l, nil
}

// PayloadSize is the number of bytes covered by the checksum,
// including the header.
func (l Layout) PayloadSize() int {
	return l.Size - 1
}

// Validate checks all fields fit between header and checksum.
func (l Layout) Validate() error {
	if l.Size < 2 {
		return fmt.Errorf("layout %q: size %d too small", l.Name, l.Size)
	}
	fields := []struct {
		name     string
		offset   int
		required bool
	}{
		{"current_rms", l.CurrentRMS, true},
		{"voltage_rms", l.VoltageRMS, true},
		{"power", l.Power, true},
		{"period", l.Period, true},
		{"energy_pulses", l.EnergyPulses, true},
		{"fast_current_rms", l.FastCurrentRMS, false},
		{"status", l.Status, false},
	}
	for _, f := range fields {
		if f.offset == NoField && !f.required {
			continue
		}
		if f.offset < 1 || f.offset+FieldSize > l.PayloadSize() {
			return fmt.Errorf("layout %q: field %s at offset %d out of range", l.Name, f.name, f.offset)
		}
	}
	return nil
}

// Uint24 decodes a little-endian unsigned 24-bit value.
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// Int24 decodes a little-endian two's complement 24-bit value.
func Int24(b []byte) int32 {
	return int32(Uint24(b)<<8) >> 8
}

// PutUint24 encodes v as little-endian 24-bit, dropping the top byte.
func PutUint24(b []byte, v uint32) {
	_ = b[2]
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}

// Packet is a response packet buffer with its layout.
type Packet struct {
	Layout Layout
	Data   []byte
}

// NewPacket allocates a zeroed packet buffer.
func NewPacket(l Layout) Packet {
	return Packet{Layout: l, Data: make([]byte, l.Size)}
}

func (p Packet) field(offset int) []byte {
	return p.Data[offset : offset+FieldSize]
}

// CurrentRMS is the raw RMS current.
func (p Packet) CurrentRMS() uint32 { return Uint24(p.field(p.Layout.CurrentRMS)) }

// VoltageRMS is the raw RMS voltage.
func (p Packet) VoltageRMS() uint32 { return Uint24(p.field(p.Layout.VoltageRMS)) }

// Power is the raw active power. Negative values mean reversed flow.
func (p Packet) Power() int32 { return Int24(p.field(p.Layout.Power)) }

// Period is the raw line period, in microseconds.
func (p Packet) Period() uint32 { return Uint24(p.field(p.Layout.Period)) }

// EnergyPulses is the accumulated energy pulse count.
func (p Packet) EnergyPulses() uint32 { return Uint24(p.field(p.Layout.EnergyPulses)) }

// FastCurrentRMS returns the raw fast RMS current if the layout carries it.
func (p Packet) FastCurrentRMS() (uint32, bool) {
	if p.Layout.FastCurrentRMS == NoField {
		return 0, false
	}
	return Uint24(p.field(p.Layout.FastCurrentRMS)), true
}

// Status returns the raw status word if the layout carries it.
func (p Packet) Status() (uint32, bool) {
	if p.Layout.Status == NoField {
		return 0, false
	}
	return Uint24(p.field(p.Layout.Status)), true
}

// Checksum computes the checksum expected for the payload of the packet.
func (p Packet) Checksum() byte {
	sum := ReadCommand
	for _, b := range p.Data[:p.Layout.PayloadSize()] {
		sum += b
	}
	return sum ^ 0xFF
}

// Seal sets header and trailing checksum, mostly useful for simulating the chip.
func (p Packet) Seal() Packet {
	p.Data[0] = PacketHeader
	p.Data[p.Layout.PayloadSize()] = p.Checksum()
	return p
}

// Bytes returns the packet buffer.
func (p Packet) Bytes() []byte {
	return p.Data
}
