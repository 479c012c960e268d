// Package main runs the one-shot contract genesis.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	deploycmd "github.com/Shreshtthh/EtherSignal/internal/cmd/deploy"
	"github.com/Shreshtthh/EtherSignal/internal/platform/config"
)

func main() {
	cfg, err := deploycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[DEPLOY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deploycmd.Run(ctx, cfg); err != nil {
		config.Exitf("deploy contract: %v", err)
	}
}
