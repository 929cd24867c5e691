// Package uart provides a buffered serial port suitable for poll driven
// protocol decoders.
package uart

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
	fx "github.com/robotalks/meter.go/pkg/framework"
)

// Config describes the serial line.
type Config struct {
	Device   string
	BaudRate int
	// Timeout bounds each read, so the reader notices cancellation.
	Timeout time.Duration
	// BufferSize is the capacity of received bytes not yet consumed.
	BufferSize int
}

// Defaults of the BL0942 UART.
const (
	DefaultBaudRate   = 4800
	DefaultTimeout    = 100 * time.Millisecond
	DefaultBufferSize = 256
)

// Port reads from a serial line in the background so that Buffered
// and ReadByte never block.
type Port struct {
	rw     io.ReadWriteCloser
	byteCh chan byte

	writeLock sync.Mutex
}

// Open opens the serial device with 8N1 framing.
func Open(conf Config) (*Port, error) {
	if conf.BaudRate == 0 {
		conf.BaudRate = DefaultBaudRate
	}
	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	p, err := serial.Open(&serial.Config{
		Address:  conf.Device,
		BaudRate: conf.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  conf.Timeout,
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("opened %s at %d baud", conf.Device, conf.BaudRate)
	return New(p, conf.BufferSize), nil
}

// New wraps an opened stream.
func New(rw io.ReadWriteCloser, bufferSize int) *Port {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Port{rw: rw, byteCh: make(chan byte, bufferSize)}
}

// Buffered implements bl0942.Stream.
func (p *Port) Buffered() int {
	return len(p.byteCh)
}

// ReadByte implements io.ByteReader and never blocks.
func (p *Port) ReadByte() (byte, error) {
	select {
	case b := <-p.byteCh:
		return b, nil
	default:
		return 0, bl0942.ErrNoData
	}
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	n, err := p.rw.Write(b)
	if err == nil && glog.V(3) {
		glog.Infof("TX % X", b[:n])
	}
	return n, err
}

// Close closes the underlying stream.
func (p *Port) Close() error {
	return p.rw.Close()
}

// Run implements Runnable. It reads until the context is canceled or the
// stream fails, then closes the stream.
func (p *Port) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p.rw, func() error {
		buf := make([]byte, 64)
		for {
			n, err := p.rw.Read(buf)
			if n > 0 && glog.V(3) {
				glog.Infof("RX % X", buf[:n])
			}
			for _, b := range buf[:n] {
				select {
				case p.byteCh <- b:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err != nil {
				if isTimeout(err) {
					continue
				}
				return err
			}
		}
	})
}

func isTimeout(err error) bool {
	return err == serial.ErrTimeout || os.IsTimeout(err)
}

var _ bl0942.Stream = &Port{}
