package sh

import (
	"context"
	"fmt"
	"time"

	"github.com/robotalks/meter.go/pkg/bl0942"
	"github.com/robotalks/meter.go/pkg/config"
	fx "github.com/robotalks/meter.go/pkg/framework"
	"github.com/robotalks/meter.go/pkg/meter"
	"github.com/robotalks/meter.go/pkg/sensor"
	"github.com/robotalks/meter.go/pkg/uart"
)

// Session is a running loop driving a meter over an opened port.
type Session struct {
	Port     *uart.Port
	Device   *bl0942.Device
	Meter    *meter.Meter
	Loop     *fx.Loop
	Latest   *sensor.Latest
	Channels []bl0942.Channel

	cancel func()
	doneCh chan error
}

// OpenSession starts a loop on the port. The session owns the port.
func OpenSession(conf *config.Config, port *uart.Port, sinks ...sensor.Sink) (*Session, error) {
	channels, err := conf.Channels()
	if err != nil {
		return nil, err
	}
	s := &Session{Port: port, Latest: &sensor.Latest{}, Channels: channels}
	devConf, err := conf.DeviceConfig(sensor.Build(channels, append([]sensor.Sink{s.Latest}, sinks...)...))
	if err != nil {
		return nil, err
	}
	s.Device = bl0942.NewDevice(port, devConf)
	s.Meter = meter.New(s.Device)
	s.Loop = fx.NewLoop().Add(s.Meter)
	s.Loop.Interval = conf.Meter.PollInterval
	s.Loop.AddRunnable(fx.NamedRun("uart", port))

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.doneCh = make(chan error, 1)
	go func() {
		s.doneCh <- s.Loop.Run(ctx)
	}()
	return s, nil
}

// Close stops the loop and closes the port.
func (s *Session) Close() error {
	s.cancel()
	if err := <-s.doneCh; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Update requests a packet.
func (s *Session) Update() {
	s.Loop.PostMessage(&meter.UpdateRequest{})
	s.Loop.TriggerNext()
}

// Init writes the chip init sequence.
func (s *Session) Init(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return meter.Init(ctx, s.Loop)
}

// Stats returns decoder counters.
func (s *Session) Stats() bl0942.Stats {
	return s.Meter.Stats()
}

// Read requests a packet and waits until all enabled channels are
// published. On timeout it returns the fresh values with an error.
func (s *Session) Read(timeout time.Duration) (map[bl0942.Channel]float32, error) {
	start := time.Now()
	s.Update()
	deadline := start.Add(timeout)
	for {
		values := make(map[bl0942.Channel]float32)
		for c, v := range s.Latest.Snapshot() {
			if !v.At.Before(start) {
				values[c] = v.Value
			}
		}
		if len(values) >= len(s.freshChannels()) {
			return values, nil
		}
		if time.Now().After(deadline) {
			return values, fmt.Errorf("timeout waiting for readings, %d of %d received", len(values), len(s.freshChannels()))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// freshChannels are the enabled channels the layout can provide.
func (s *Session) freshChannels() []bl0942.Channel {
	channels := make([]bl0942.Channel, 0, len(s.Channels))
	for _, c := range s.Channels {
		if c == bl0942.ChannelFastCurrent && s.Device.Layout().FastCurrentRMS == bl0942.NoField {
			continue
		}
		channels = append(channels, c)
	}
	return channels
}
