package bl0942

import (
	"io"
	"time"

	"github.com/golang/glog"
)

// Stream is the serial link to the chip.
type Stream interface {
	io.Writer
	io.ByteReader
	// Buffered returns the number of bytes that can be read without blocking.
	Buffered() int
}

// ReadRequest is the command requesting a full packet.
var ReadRequest = []byte{ReadCommand, FullPacket}

// Registers used by DefaultInit.
const (
	RegIFastRMSCtrl byte = 0x10
	RegMode         byte = 0x18
	RegSoftReset    byte = 0x19
	RegUsrWrProt    byte = 0x1A
	RegTPSCtrl      byte = 0x1B
)

// InitSequence is a list of raw commands written to the chip on setup.
type InitSequence [][]byte

// DefaultInit resets the chip and configures measurement modes.
var DefaultInit = InitSequence{
	// reset to default
	{WriteCommand, RegSoftReset, 0x5A, 0x5A, 0x5A, 0x38},
	// enable user operation write
	{WriteCommand, RegUsrWrProt, 0x55, 0x00, 0x00, 0xF0},
	// 0x0100: CF_UNABLE energy pulse, AC_FREQ_SEL 50Hz, RMS_UPDATE_SEL 800ms
	{WriteCommand, RegMode, 0x00, 0x10, 0x00, 0x37},
	// 0x47FF: over-current and leakage alarm on, auto temperature, interval 100ms
	{WriteCommand, RegTPSCtrl, 0xFF, 0x47, 0x00, 0xFE},
	// 0x181C: half cycle, fast RMS threshold 6172
	{WriteCommand, RegIFastRMSCtrl, 0x1C, 0x18, 0x00, 0x1B},
}

// Stats counts what the Device has seen.
type Stats struct {
	Bytes          uint64
	Packets        uint64
	ChecksumErrors uint64
	ResyncErrors   uint64
	Groups         uint64
	Requests       uint64
}

// Config configures a Device.
type Config struct {
	Layout     Layout
	References References
	Sensors    Sensors
	Init       InitSequence
	InitDelay  time.Duration
	Reporter   Reporter
}

// Device drives one chip over a Stream. It's not safe for concurrent use:
// all methods must be called from the polling goroutine.
type Device struct {
	Stream    Stream
	Init      InitSequence
	InitDelay time.Duration
	Reporter  Reporter
	// OnGroup is called after each published field group, optional.
	OnGroup func(FieldGroup)

	assembler *Assembler
	publisher *Publisher
	pending   bool
	stats     Stats
}

// NewDevice creates a Device.
func NewDevice(s Stream, conf Config) *Device {
	l := conf.Layout
	if l.Size == 0 {
		l = CompactLayout
	}
	d := &Device{
		Stream:    s,
		Init:      conf.Init,
		InitDelay: conf.InitDelay,
		Reporter:  conf.Reporter,
		assembler: NewAssembler(l),
		publisher: NewPublisher(conf.References, conf.Sensors),
	}
	if d.Init == nil {
		d.Init = DefaultInit
	}
	return d
}

// Layout returns the packet layout.
func (d *Device) Layout() Layout {
	return d.assembler.Packet().Layout
}

// Publisher exposes the field publisher.
func (d *Device) Publisher() *Publisher {
	return d.publisher
}

// Assembler exposes the frame assembler.
func (d *Device) Assembler() *Assembler {
	return d.assembler
}

// Stats returns a copy of counters.
func (d *Device) Stats() Stats {
	return d.stats
}

// Pending indicates a read request is waiting to be written.
func (d *Device) Pending() bool {
	return d.pending
}

// Setup writes the init sequence.
func (d *Device) Setup() error {
	for n, cmd := range d.Init {
		if _, err := d.Stream.Write(cmd); err != nil {
			return err
		}
		glog.V(2).Infof("init[%d] % X", n, cmd)
		if d.InitDelay > 0 {
			time.Sleep(d.InitDelay)
		}
	}
	return nil
}

// RequestUpdate schedules a read request for the next Poll.
func (d *Device) RequestUpdate() {
	d.pending = true
}

// Poll runs one tick: drain input if any, otherwise publish one field
// group, then send a pending read request.
func (d *Device) Poll() error {
	if d.Stream.Buffered() > 0 {
		for d.Stream.Buffered() > 0 {
			b, err := d.Stream.ReadByte()
			if err != nil {
				break
			}
			d.feed(b)
		}
	} else if g, ok := d.publisher.Advance(d.assembler.Packet()); ok {
		d.stats.Groups++
		if fn := d.OnGroup; fn != nil {
			fn(g)
		}
	}
	if d.pending {
		if _, err := d.Stream.Write(ReadRequest); err != nil {
			return err
		}
		d.pending = false
		d.stats.Requests++
	}
	return nil
}

func (d *Device) feed(b byte) {
	d.stats.Bytes++
	inFrame := d.assembler.InFrame()
	ev, err := d.assembler.Feed(b)
	switch ev {
	case FrameContinue:
		if !inFrame {
			d.publisher.Halt()
		}
	case FrameChecksumOK:
		d.stats.Packets++
		d.publisher.Restart()
	case FrameChecksumFail:
		d.stats.ChecksumErrors++
		d.report(err)
	case FrameResyncError:
		d.stats.ResyncErrors++
		d.report(err)
	}
}

func (d *Device) report(err error) {
	if r := d.Reporter; r != nil {
		r.ReportError(err)
		return
	}
	glog.Warningf("bl0942: %v", err)
}
