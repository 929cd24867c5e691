package meter

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/meter.go/pkg/bl0942"
	fx "github.com/robotalks/meter.go/pkg/framework"
)

type testStream struct {
	in  []byte
	out bytes.Buffer
}

func (s *testStream) Buffered() int { return len(s.in) }

func (s *testStream) ReadByte() (byte, error) {
	if len(s.in) == 0 {
		return 0, bl0942.ErrNoData
	}
	b := s.in[0]
	s.in = s.in[1:]
	return b, nil
}

func (s *testStream) Write(b []byte) (int, error) { return s.out.Write(b) }

type testStatus struct {
	stats []bl0942.Stats
}

func (s *testStatus) PublishStatus(stats bl0942.Stats) error {
	s.stats = append(s.stats, stats)
	return nil
}

func compactPacket(current, voltage uint32, power int32, period, energy uint32) []byte {
	pkt := bl0942.NewPacket(bl0942.CompactLayout)
	bl0942.PutUint24(pkt.Data[1:], current)
	bl0942.PutUint24(pkt.Data[4:], voltage)
	bl0942.PutUint24(pkt.Data[7:], uint32(power))
	bl0942.PutUint24(pkt.Data[10:], period)
	bl0942.PutUint24(pkt.Data[13:], energy)
	return pkt.Seal().Bytes()
}

func TestMeterScheduleAndPoll(t *testing.T) {
	stream := &testStream{}
	var published []bl0942.FieldGroup
	dev := bl0942.NewDevice(stream, bl0942.Config{
		References: bl0942.References{Current: 10, Voltage: 100, Power: 2, Energy: 4},
	})
	dev.OnGroup = func(g bl0942.FieldGroup) { published = append(published, g) }
	m := New(dev)
	m.UpdateInterval = time.Hour
	loop := fx.NewLoop().Add(m)
	ctx := context.Background()

	// the schedule posts immediately, the request is written next tick.
	loop.RunOnce(ctx)
	require.Equal(t, 0, stream.out.Len())
	loop.RunOnce(ctx)
	require.Equal(t, bl0942.ReadRequest, stream.out.Bytes())
	require.Equal(t, uint64(1), m.Stats().Requests)

	stream.in = compactPacket(1000, 23000, -20, 20000, 8)
	loop.RunOnce(ctx)
	require.Equal(t, uint64(1), m.Stats().Packets)
	require.Empty(t, published)

	for i := 0; i < 4; i++ {
		loop.RunOnce(ctx)
	}
	require.Len(t, published, 3)
	v, ok := published[0].Value(bl0942.ChannelCurrent)
	require.True(t, ok)
	require.Equal(t, float32(100), v)
	v, ok = published[1].Value(bl0942.ChannelFrequency)
	require.True(t, ok)
	require.Equal(t, float32(50), v)
	require.Equal(t, bl0942.PhaseEnergy, m.LastGroup().Phase)
	require.Equal(t, uint64(3), m.Stats().Groups)
	// only one request within the interval.
	require.Equal(t, uint64(1), m.Stats().Requests)
}

func TestMeterInitRequest(t *testing.T) {
	stream := &testStream{}
	dev := bl0942.NewDevice(stream, bl0942.Config{
		Init: bl0942.InitSequence{{0xA8, 0x19, 0x5A, 0x5A, 0x5A, 0x38}},
	})
	m := New(dev)
	loop := fx.NewLoop().Add(m)
	doneCh := make(chan error, 1)
	loop.PostMessage(&InitRequest{Done: doneCh})
	loop.RunOnce(context.Background())
	require.NoError(t, <-doneCh)
	require.Equal(t, []byte{0xA8, 0x19, 0x5A, 0x5A, 0x5A, 0x38}, stream.out.Bytes())
}

func TestMeterInitFromLoop(t *testing.T) {
	stream := &testStream{}
	dev := bl0942.NewDevice(stream, bl0942.Config{Init: bl0942.InitSequence{{0x01}}})
	m := New(dev)
	loop := fx.NewLoop().Add(m)
	loop.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	require.NoError(t, Init(ctx, loop))
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, []byte{0x01}, stream.out.Bytes())
}

type fakeControl struct {
	posted []fx.Message
}

func (c *fakeControl) Time() time.Time { return time.Now() }
func (c *fakeControl) Context() context.Context { return context.Background() }
func (c *fakeControl) Tick() uint64 { return 1 }
func (c *fakeControl) PriorityLevel() int { return fx.PrLvSense }
func (c *fakeControl) Messages() fx.MessageStore { return c }
func (c *fakeControl) ProcessMessages(proc fx.MessageProcessor) {}
func (c *fakeControl) AddMessages(msgs ...fx.Message) {}
func (c *fakeControl) PostMessage(msg fx.Message) { c.posted = append(c.posted, msg) }
func (c *fakeControl) TriggerNext() {}

type failingStream struct {
	testStream
}

func (s *failingStream) Write(b []byte) (int, error) { return 0, errors.New("broken") }

func TestMeterPollError(t *testing.T) {
	dev := bl0942.NewDevice(&failingStream{}, bl0942.Config{})
	m := New(dev)
	dev.RequestUpdate()
	err := m.Control(&fakeControl{})
	require.EqualError(t, err, "broken")
	require.True(t, dev.Pending())
}

func TestMeterStatus(t *testing.T) {
	status := &testStatus{}
	dev := bl0942.NewDevice(&testStream{in: []byte{0x00}}, bl0942.Config{})
	m := New(dev)
	m.Status = status
	m.StatusInterval = time.Nanosecond
	loop := fx.NewLoop().Add(m)
	loop.RunOnce(context.Background())
	time.Sleep(time.Millisecond)
	loop.RunOnce(context.Background())
	require.NotEmpty(t, status.stats)
	require.Equal(t, uint64(1), status.stats[len(status.stats)-1].Bytes)
}

func TestRequestUpdatePosts(t *testing.T) {
	cc := &fakeControl{}
	require.NoError(t, RequestUpdate(cc))
	require.Len(t, cc.posted, 1)
	require.IsType(t, &UpdateRequest{}, cc.posted[0])
}
