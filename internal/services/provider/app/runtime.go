// Package app wires the provider runtime: node client, decision engine,
// submission queue, and telemetry poller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	"github.com/Shreshtthh/EtherSignal/internal/services/provider/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/provider/poll"
	"github.com/Shreshtthh/EtherSignal/internal/services/provider/submit"
	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

// RuntimeConfig controls provider startup and loop behavior.
type RuntimeConfig struct {
	NodeURL      string
	WalletSeed   string
	SchemaID     string
	SNRThreshold int16
	PollInterval time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultSNRThreshold = 10
)

// Run starts the provider: validates startup state against the node, then
// polls telemetry and submits grant and revoke transactions until the
// context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.NodeURL) == "" {
		return fmt.Errorf("node url is required")
	}
	if strings.TrimSpace(cfg.SchemaID) == "" {
		cfg.SchemaID = telemetry.SchemaID()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SNRThreshold == 0 {
		cfg.SNRThreshold = defaultSNRThreshold
	}

	wallet, err := chain.NewWalletFromSeed(cfg.WalletSeed)
	if err != nil {
		return fmt.Errorf("load provider wallet: %w", err)
	}
	client := chain.NewClient(cfg.NodeURL, wallet)

	// A provider with no funds can never commit a grant; refuse to start.
	account, err := client.Account(ctx, wallet.Address())
	if err != nil {
		return fmt.Errorf("check provider account: %w", err)
	}
	balance, err := chain.ParseValue(account.Balance)
	if err != nil {
		return fmt.Errorf("parse provider balance: %w", err)
	}
	if balance.Sign() == 0 {
		return fmt.Errorf("provider account %s has zero balance", wallet.Address())
	}
	log.Printf("provider %s starting: balance=%s threshold=%ddB schema=%s",
		wallet.Address(), account.Balance, cfg.SNRThreshold, cfg.SchemaID)

	engine := domain.NewEngine(cfg.SNRThreshold)
	queue := submit.NewQueue()

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		if err := queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("submission queue stopped: %v", err)
		}
	}()

	handler := func(ctx context.Context, index uint64, record []byte) {
		sample, err := telemetry.Decode(record)
		if err != nil {
			log.Printf("record %d: dropping undecodable record: %v", index, err)
			return
		}
		dispatch(ctx, engine, queue, client, sample)
	}

	poller := poll.New(client, cfg.SchemaID, handler, time.Now)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	err = poller.Run(ctx, ticker.C)
	<-queueDone
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// dispatch evaluates one sample and enqueues the resulting submission. The
// done callback settles or rolls back the engine's optimistic state.
func dispatch(_ context.Context, engine *domain.Engine, queue *submit.Queue, client *chain.Client, sample telemetry.Sample) {
	decision := engine.Evaluate(sample, time.Now())
	deviceID := chain.EncodeDeviceID(sample.DeviceID)

	switch decision.Action {
	case domain.ActionGrant:
		queue.Enqueue(submit.Task{
			Name: "grant " + deviceID,
			Run: func(ctx context.Context) error {
				_, err := client.SubmitGrant(ctx, sample.DeviceID,
					domain.GrantFrequencyMHz, uint32(domain.GrantDuration/time.Second), sample.BidPrice)
				return err
			},
			Done: func(err error) {
				if err != nil {
					engine.Rollback(decision)
					log.Printf("device %s: grant failed, rolled back: %v", deviceID, err)
					return
				}
				engine.Confirm(decision)
				log.Printf("device %s: granted %dMHz for %s at %s",
					deviceID, domain.GrantFrequencyMHz, domain.GrantDuration, sample.BidPrice)
			},
		})
	case domain.ActionRevoke:
		queue.Enqueue(submit.Task{
			Name: "revoke " + deviceID,
			Run: func(ctx context.Context) error {
				_, err := client.SubmitRevoke(ctx, sample.DeviceID)
				return err
			},
			Done: func(err error) {
				if err != nil {
					engine.Rollback(decision)
					log.Printf("device %s: revoke failed, rolled back: %v", deviceID, err)
					return
				}
				engine.Confirm(decision)
				log.Printf("device %s: revoked, snr %ddB below threshold", deviceID, sample.SNRdB)
			},
		})
	}
}
