package bl0942

// FrameEvent is the outcome of feeding one byte to the Assembler.
type FrameEvent int

const (
	// FrameContinue means the byte was accepted into the current packet.
	FrameContinue FrameEvent = iota
	// FrameChecksumOK means a complete packet passed validation.
	FrameChecksumOK
	// FrameChecksumFail means a complete packet was discarded.
	FrameChecksumFail
	// FrameResyncError means the byte was dropped while awaiting a header.
	FrameResyncError
)

var frameEventNames = [...]string{"continue", "checksum-ok", "checksum-fail", "resync-error"}

func (e FrameEvent) String() string {
	if e >= 0 && int(e) < len(frameEventNames) {
		return frameEventNames[e]
	}
	return "unknown"
}

// Assembler reassembles packets from a byte stream.
type Assembler struct {
	packet   Packet
	offset   int
	checksum byte
}

// NewAssembler creates an Assembler awaiting the first header.
func NewAssembler(l Layout) *Assembler {
	a := &Assembler{packet: NewPacket(l)}
	a.Reset()
	return a
}

// Reset drops any partial packet and waits for the next header.
func (a *Assembler) Reset() {
	a.offset, a.checksum = a.packet.Layout.Size, 0
}

// Packet returns the packet buffer. The content is only meaningful after
// FrameChecksumOK and until the next header arrives.
func (a *Assembler) Packet() Packet {
	return a.packet
}

// Offset is the next buffer position to fill. A value equal to the
// packet size means waiting for a header.
func (a *Assembler) Offset() int {
	return a.offset
}

// InFrame indicates a header has been received and the packet is incomplete.
func (a *Assembler) InFrame() bool {
	return a.offset < a.packet.Layout.Size
}

// Feed consumes one byte. Errors are never fatal; the Assembler recovers at
// the next header byte.
func (a *Assembler) Feed(b byte) (FrameEvent, error) {
	payloadSize := a.packet.Layout.PayloadSize()
	switch {
	case a.offset < payloadSize:
		a.packet.Data[a.offset] = b
		a.offset++
		a.checksum += b
		return FrameContinue, nil
	case a.offset == payloadSize:
		a.packet.Data[a.offset] = b
		a.offset++
		if expected := a.checksum ^ 0xFF; b != expected {
			return FrameChecksumFail, &ChecksumError{Expected: expected, Received: b}
		}
		return FrameChecksumOK, nil
	case b == PacketHeader:
		a.packet.Data[0] = PacketHeader
		a.offset = 1
		a.checksum = ReadCommand + PacketHeader
		return FrameContinue, nil
	default:
		return FrameResyncError, &ResyncError{Byte: b}
	}
}
