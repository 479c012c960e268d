// Package deploy parses deploy command flags and performs the one-shot
// contract genesis against a fresh ledger node.
package deploy

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	entrypoint "github.com/Shreshtthh/EtherSignal/internal/platform/cmd"
)

// Config holds deploy command configuration.
type Config struct {
	NodeURL    string `env:"ETHERSIGNAL_DEPLOY_NODE_URL" envDefault:"http://localhost:8545"`
	WalletSeed string `env:"ETHERSIGNAL_DEPLOY_WALLET_SEED"`
	MinPayment string `env:"ETHERSIGNAL_DEPLOY_MIN_PAYMENT" envDefault:"1000000"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.NodeURL, "node-url", cfg.NodeURL, "The ledger node base URL")
	fs.StringVar(&cfg.MinPayment, "min-payment", cfg.MinPayment, "Minimum grant payment in the smallest unit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run deploys the spectrum-access contract with the wallet's address as
// owner. Deploying against an already-initialized node fails.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDeploy, func(ctx context.Context) error {
		wallet, err := chain.NewWalletFromSeed(cfg.WalletSeed)
		if err != nil {
			return fmt.Errorf("load owner wallet: %w", err)
		}
		minPayment, err := chain.ParseValue(cfg.MinPayment)
		if err != nil {
			return fmt.Errorf("parse minimum payment: %w", err)
		}
		if minPayment.Sign() <= 0 {
			return fmt.Errorf("minimum payment must be positive")
		}

		client := chain.NewClient(cfg.NodeURL, wallet)
		if err := client.Deploy(ctx, wallet.Address(), minPayment); err != nil {
			return fmt.Errorf("deploy contract: %w", err)
		}
		log.Printf("contract deployed: owner=%s minPayment=%s", wallet.Address(), minPayment)
		return nil
	})
}
