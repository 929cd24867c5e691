// Package sensor provides sinks for decoded meter channels.
package sensor

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
)

// Sink creates sensors for channels. It may return nil for a channel it
// doesn't handle.
type Sink interface {
	Sensor(bl0942.Channel) bl0942.Sensor
}

// SinkFunc is func form of Sink.
type SinkFunc func(bl0942.Channel) bl0942.Sensor

// Sensor implements Sink.
func (f SinkFunc) Sensor(c bl0942.Channel) bl0942.Sensor {
	return f(c)
}

// Mux publishes to multiple sensors.
type Mux []bl0942.Sensor

// PublishState implements bl0942.Sensor.
func (m Mux) PublishState(v float32) {
	for _, s := range m {
		s.PublishState(v)
	}
}

// Build attaches sinks to the enabled channels. Channels not enabled stay
// nil, so the device doesn't publish them.
func Build(enabled []bl0942.Channel, sinks ...Sink) bl0942.Sensors {
	var sensors bl0942.Sensors
	for _, c := range enabled {
		var mux Mux
		for _, sink := range sinks {
			if s := sink.Sensor(c); s != nil {
				mux = append(mux, s)
			}
		}
		switch len(mux) {
		case 0:
		case 1:
			sensors.Set(c, mux[0])
		default:
			sensors.Set(c, mux)
		}
	}
	return sensors
}

// Log is a sink logging every value at the verbosity level.
type Log glog.Level

// Sensor implements Sink.
func (l Log) Sensor(c bl0942.Channel) bl0942.Sensor {
	return bl0942.PublishStateFunc(func(v float32) {
		if glog.V(glog.Level(l)) {
			glog.Infof("%s: %.3f %s", c, v, c.Unit())
		}
	})
}

// Value is the last value of a channel.
type Value struct {
	Value float32
	At    time.Time
}

// Latest is a sink remembering the last value of each channel.
// It's safe for concurrent use.
type Latest struct {
	Now func() time.Time

	lock   sync.RWMutex
	values map[bl0942.Channel]Value
}

// Sensor implements Sink.
func (l *Latest) Sensor(c bl0942.Channel) bl0942.Sensor {
	return bl0942.PublishStateFunc(func(v float32) {
		now := time.Now
		if l.Now != nil {
			now = l.Now
		}
		l.lock.Lock()
		if l.values == nil {
			l.values = make(map[bl0942.Channel]Value)
		}
		l.values[c] = Value{Value: v, At: now()}
		l.lock.Unlock()
	})
}

// Get returns the last value of a channel.
func (l *Latest) Get(c bl0942.Channel) (Value, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	v, ok := l.values[c]
	return v, ok
}

// Snapshot copies all values.
func (l *Latest) Snapshot() map[bl0942.Channel]Value {
	l.lock.RLock()
	defer l.lock.RUnlock()
	values := make(map[bl0942.Channel]Value, len(l.values))
	for c, v := range l.values {
		values[c] = v
	}
	return values
}
