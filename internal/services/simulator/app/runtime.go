// Package app runs the signal simulator: it advances the device fleet on a
// fixed cadence and publishes one encoded sample per device per tick.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	"github.com/Shreshtthh/EtherSignal/internal/services/simulator/domain"
	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

// RuntimeConfig controls simulator startup and cadence.
type RuntimeConfig struct {
	NodeURL     string
	DeviceCount int
	Interval    time.Duration
}

const (
	defaultDeviceCount = 3
	defaultInterval    = 2 * time.Second
)

// Run publishes fleet samples until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.NodeURL) == "" {
		return fmt.Errorf("node url is required")
	}
	if cfg.DeviceCount <= 0 {
		cfg.DeviceCount = defaultDeviceCount
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	client := chain.NewClient(cfg.NodeURL, nil)
	schemaID := telemetry.SchemaID()

	// The stream must exist before the first publish; the registrar should
	// have created it, so treat a missing schema as a startup error.
	if _, err := client.RecordCount(ctx, schemaID); err != nil {
		return fmt.Errorf("check telemetry stream: %w", err)
	}

	fleet := domain.NewFleet(cfg.DeviceCount, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	log.Printf("simulating %d devices every %s on schema %s", fleet.Size(), cfg.Interval, schemaID)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			publish(ctx, client, schemaID, fleet.Step(now))
		}
	}
}

// publish appends each sample to the stream. A failed publish drops the
// sample; the next tick produces fresh readings anyway.
func publish(ctx context.Context, client *chain.Client, schemaID string, samples []telemetry.Sample) {
	for _, sample := range samples {
		record, err := telemetry.Encode(sample)
		if err != nil {
			log.Printf("device %s: encode sample: %v", chain.EncodeDeviceID(sample.DeviceID), err)
			continue
		}
		index, err := client.AppendRecord(ctx, schemaID, record)
		if err != nil {
			log.Printf("device %s: publish sample: %v", chain.EncodeDeviceID(sample.DeviceID), err)
			continue
		}
		log.Printf("device %s: published record %d snr=%ddB bid=%s",
			chain.EncodeDeviceID(sample.DeviceID), index, sample.SNRdB, sample.BidPrice)
	}
}
