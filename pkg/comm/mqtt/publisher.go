package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
	fx "github.com/robotalks/meter.go/pkg/framework"
	"github.com/robotalks/meter.go/pkg/msgs"
)

// Topic leaves under a meter.
const (
	MetaTopic   = "meta"
	StatusTopic = "status"
)

// MeterTopic builds the topic of a leaf under a meter.
func MeterTopic(meterID, leaf string) string {
	return meterID + "/" + leaf
}

// SplitTopic splits a relative topic into meter ID and leaf.
func SplitTopic(topic string) (meterID, leaf string, ok bool) {
	pos := strings.LastIndex(topic, "/")
	if pos <= 0 || pos+1 >= len(topic) {
		return "", "", false
	}
	return topic[:pos], topic[pos+1:], true
}

// Publisher is a sensor Sink publishing readings of one meter.
// Readings are protobuf encoded Reading messages on <meter>/<channel>,
// the meta is retained JSON on <meter>/meta and cleared on exit.
type Publisher struct {
	Queue   *Queue
	MeterID string
	Meta    msgs.Meta
	// Retain sets the retain flag on readings.
	Retain bool
	QoS    byte
	Now    func() time.Time
}

// NewPublisher creates a Publisher connecting to broker URL.
func NewPublisher(brokerURL, meterID string, meta msgs.Meta) (*Publisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+MeterTopic(meterID, MetaTopic), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("meter:" + meterID)
	}
	p := &Publisher{
		Queue:   NewQueue(opts, topicPrefix),
		MeterID: meterID,
		Meta:    meta,
	}
	p.Queue.OnConnect = func(*Queue) { p.publishMeta() }
	return p, nil
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Sensor implements sensor.Sink.
func (p *Publisher) Sensor(c bl0942.Channel) bl0942.Sensor {
	topic := MeterTopic(p.MeterID, c.String())
	return bl0942.PublishStateFunc(func(v float32) {
		data, err := msgs.Encode(&msgs.Reading{
			Meter:     p.MeterID,
			Channel:   c.String(),
			Value:     v,
			Unit:      c.Unit(),
			Timestamp: p.now().UnixNano(),
		})
		if err != nil {
			glog.Errorf("encode %s reading error: %v", c, err)
			return
		}
		// never wait for delivery here, this runs in the poll tick.
		p.Queue.PubWith(topic, data, p.QoS, p.Retain)
	})
}

// PublishStatus publishes the decoder counters.
func (p *Publisher) PublishStatus(stats bl0942.Stats) error {
	data, err := msgs.Encode(&msgs.Status{
		Meter:          p.MeterID,
		Bytes:          stats.Bytes,
		Packets:        stats.Packets,
		ChecksumErrors: stats.ChecksumErrors,
		ResyncErrors:   stats.ResyncErrors,
		Requests:       stats.Requests,
		Timestamp:      p.now().UnixNano(),
	})
	if err != nil {
		return err
	}
	p.Queue.PubWith(MeterTopic(p.MeterID, StatusTopic), data, p.QoS, true)
	return nil
}

func (p *Publisher) publishMeta() {
	data, err := json.Marshal(&p.Meta)
	if err != nil {
		glog.Errorf("encode meta error: %v", err)
		return
	}
	p.Queue.PubWith(MeterTopic(p.MeterID, MetaTopic), data, 1, true)
}

// AddToLoop implements LoopAdder.
func (p *Publisher) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("mqtt", p))
}

// Run implements Runnable. The client reconnects automatically once
// connected; the first connection is retried until the context is done.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		token := p.Queue.Connect()
		token.Wait()
		err := token.Error()
		if err == nil {
			break
		}
		glog.Warningf("mqtt connect error: %v", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	<-ctx.Done()
	p.Queue.PubWith(MeterTopic(p.MeterID, MetaTopic), nil, 1, true).WaitTimeout(time.Second)
	p.Queue.Close()
	return ctx.Err()
}
