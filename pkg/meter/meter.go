// Package meter drives a BL0942 device from a framework loop.
package meter

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
	fx "github.com/robotalks/meter.go/pkg/framework"
)

// UpdateRequest asks the meter to request a packet from the chip.
type UpdateRequest struct{}

// NewMessage implements Message.
func (m *UpdateRequest) NewMessage() fx.Message { return &UpdateRequest{} }

// InitRequest asks the meter to write the chip init sequence.
type InitRequest struct {
	// Done receives the result if not nil.
	Done chan<- error
}

// NewMessage implements Message.
func (m *InitRequest) NewMessage() fx.Message { return &InitRequest{} }

// StatusPublisher receives decoder counters periodically.
type StatusPublisher interface {
	PublishStatus(bl0942.Stats) error
}

// Meter is the loop controller polling a Device every tick. Requests
// from other goroutines arrive as messages, so the Device is only
// touched by the loop goroutine.
type Meter struct {
	Device *bl0942.Device
	// UpdateInterval schedules UpdateRequest, 0 disables.
	UpdateInterval time.Duration
	// StatusInterval schedules publishing the counters to Status, 0 disables.
	StatusInterval time.Duration
	Status         StatusPublisher

	lock  sync.RWMutex
	stats bl0942.Stats
	group bl0942.FieldGroup
}

// New creates a Meter.
func New(dev *bl0942.Device) *Meter {
	m := &Meter{Device: dev}
	prev := dev.OnGroup
	dev.OnGroup = func(g bl0942.FieldGroup) {
		m.lock.Lock()
		m.group = g
		m.lock.Unlock()
		if prev != nil {
			prev(g)
		}
	}
	return m
}

// Control implements Controller.
func (m *Meter) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		switch msg := mc.CurrentMessage().(type) {
		case *UpdateRequest:
			m.Device.RequestUpdate()
			mc.MessageTaken()
		case *InitRequest:
			err := m.Device.Setup()
			if err != nil {
				glog.Errorf("init error: %v", err)
			}
			if msg.Done != nil {
				msg.Done <- err
			}
			mc.MessageTaken()
		}
	}))
	err := m.Device.Poll()
	m.lock.Lock()
	m.stats = m.Device.Stats()
	m.lock.Unlock()
	return err
}

// Stats returns the counters as of the last tick. It's safe for
// concurrent use.
func (m *Meter) Stats() bl0942.Stats {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.stats
}

// LastGroup returns the last published field group.
func (m *Meter) LastGroup() bl0942.FieldGroup {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.group
}

func (m *Meter) publishStatus(cc fx.ControlContext) error {
	return m.Status.PublishStatus(m.Stats())
}

// AddToLoop implements LoopAdder.
func (m *Meter) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, m)
	if m.UpdateInterval > 0 {
		loop.AddController(fx.PrLvSchedule, fx.Every(m.UpdateInterval, fx.ControlFunc(RequestUpdate)).Now())
	}
	if m.StatusInterval > 0 && m.Status != nil {
		loop.AddController(fx.PrLvPostProc, fx.Every(m.StatusInterval, fx.ControlFunc(m.publishStatus)))
	}
}

// RequestUpdate posts an UpdateRequest, it can be used as a ControlFunc.
func RequestUpdate(cc fx.ControlContext) error {
	cc.PostMessage(&UpdateRequest{})
	return nil
}

// Init posts an InitRequest and waits for the result.
func Init(ctx context.Context, ctl fx.LoopControl) error {
	doneCh := make(chan error, 1)
	ctl.PostMessage(&InitRequest{Done: doneCh})
	ctl.TriggerNext()
	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
