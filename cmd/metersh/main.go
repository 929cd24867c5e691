package main

import (
	"flag"

	"github.com/robotalks/meter.go/pkg/cli/sh"
	"github.com/robotalks/meter.go/pkg/config"
)

//go-build: CGO_ENABLED=0

func init() {
	flag.Set("logtostderr", "true")
	config.SetupFlags()
}

func main() {
	sh.Main()
}
