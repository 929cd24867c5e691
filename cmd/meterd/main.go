package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/meter.go/pkg/bl0942"
	"github.com/robotalks/meter.go/pkg/comm/mqtt"
	"github.com/robotalks/meter.go/pkg/comm/websocket"
	"github.com/robotalks/meter.go/pkg/config"
	"github.com/robotalks/meter.go/pkg/env"
	fx "github.com/robotalks/meter.go/pkg/framework"
	"github.com/robotalks/meter.go/pkg/meter"
	"github.com/robotalks/meter.go/pkg/msgs"
	"github.com/robotalks/meter.go/pkg/sensor"
	"github.com/robotalks/meter.go/pkg/uart"
)

const appID = "meter.go"

var configFile string

func init() {
	flag.Set("logtostderr", "true")
	config.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "Configuration file in YAML.")
}

func loadConfig() *config.Config {
	conf := config.NewConfig()
	if configFile != "" {
		var err error
		if conf, err = config.Load(configFile, conf); err != nil {
			glog.Exit(err)
		}
	}
	if err := config.Validate(conf); err != nil {
		glog.Exit(err)
	}
	config.Normalize(conf)
	if conf.Meter.ID == "" {
		conf.Meter.ID = env.MeterID(appID)
	}
	return conf
}

func main() {
	flag.Parse()
	conf := loadConfig()
	channels, err := conf.Channels()
	if err != nil {
		glog.Exit(err)
	}

	loop := fx.NewLoop()
	loop.Interval = conf.Meter.PollInterval
	sinks := []sensor.Sink{sensor.Log(1)}
	var status meter.StatusPublisher

	if conf.MQTT.URL != "" {
		pub, err := mqtt.NewPublisher(conf.MQTT.URL, conf.Meter.ID, msgs.Meta{
			Description: conf.Meter.Description,
			Layout:      conf.Meter.Layout,
			Channels:    conf.Sensors,
			Labels:      conf.Meter.Labels,
		})
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		pub.QoS, pub.Retain = conf.MQTT.QoS, conf.MQTT.Retain
		sinks = append(sinks, pub)
		loop.Add(pub)
		status = pub
	}
	if conf.WebSocket.Listen != "" {
		hub := &websocket.Hub{MeterID: conf.Meter.ID}
		sinks = append(sinks, hub)
		loop.Add(&websocket.Server{Addr: conf.WebSocket.Listen, Path: conf.WebSocket.Path, Hub: hub})
	}

	devConf, err := conf.DeviceConfig(sensor.Build(channels, sinks...))
	if err != nil {
		glog.Exit(err)
	}
	port, err := uart.Open(conf.UART())
	if err != nil {
		glog.Exitf("open %s: %v", conf.Serial.Device, err)
	}
	dev := bl0942.NewDevice(port, devConf)
	if !conf.Meter.SkipInit {
		if err := dev.Setup(); err != nil {
			glog.Exitf("init: %v", err)
		}
	}

	m := meter.New(dev)
	m.UpdateInterval = conf.Meter.UpdateInterval
	m.StatusInterval = conf.Meter.StatusInterval
	m.Status = status
	glog.Infof("meter %s: %s layout, update every %s", conf.Meter.ID, dev.Layout().Name, m.UpdateInterval)

	loop.Add(m).AddRunnable(fx.NamedRun("uart", port))
	loop.RunOrFail()
}
