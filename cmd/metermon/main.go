package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/comm/mqtt"
	fx "github.com/robotalks/meter.go/pkg/framework"
	"github.com/robotalks/meter.go/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/meters/"
	filter  = "#"
)

func init() {
	flag.Set("logtostderr", "true")
	if val := os.Getenv("METER_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&filter, "filter", filter, "Topic filter relative to the prefix, e.g. +/power")
}

func handle(topic string, payload []byte) {
	meterID, leaf, ok := mqtt.SplitTopic(topic)
	if !ok {
		glog.Infof("%s: %d bytes", topic, len(payload))
		return
	}
	switch leaf {
	case mqtt.MetaTopic:
		if len(payload) == 0 {
			glog.Infof("%s: offline", meterID)
			return
		}
		glog.Infof("%s: meta %s", meterID, string(payload))
	case mqtt.StatusTopic:
		s, err := msgs.DecodeStatus(payload)
		if err != nil {
			glog.Warningf("%s: bad status: %v", topic, err)
			return
		}
		glog.Infof("%s: status bytes=%d packets=%d checksum-errors=%d resync-errors=%d requests=%d",
			meterID, s.Bytes, s.Packets, s.ChecksumErrors, s.ResyncErrors, s.Requests)
	default:
		r, err := msgs.DecodeReading(payload)
		if err != nil {
			glog.Warningf("%s: bad reading: %v", topic, err)
			return
		}
		glog.Infof("%s: %s %.3f %s at %s", meterID, r.Channel, r.Value, r.Unit, r.Time().Format("15:04:05.000"))
	}
}

func main() {
	flag.Parse()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	// subscriptions are restored when connected.
	q.Sub(filter, mqtt.Handler(handle))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	defer q.Close()

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.RunnableFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	runner.Wait()
}
