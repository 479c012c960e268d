// Package main runs the one-shot telemetry schema registration.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	registrarcmd "github.com/Shreshtthh/EtherSignal/internal/cmd/registrar"
	"github.com/Shreshtthh/EtherSignal/internal/platform/config"
)

func main() {
	cfg, err := registrarcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[REGISTRAR] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registrarcmd.Run(ctx, cfg); err != nil {
		config.Exitf("register schema: %v", err)
	}
}
