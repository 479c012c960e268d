// Package provider parses provider command flags and launches the provider
// runtime.
package provider

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/Shreshtthh/EtherSignal/internal/platform/cmd"
	providerapp "github.com/Shreshtthh/EtherSignal/internal/services/provider/app"
)

// Config holds provider command configuration.
type Config struct {
	NodeURL      string        `env:"ETHERSIGNAL_PROVIDER_NODE_URL" envDefault:"http://localhost:8545"`
	WalletSeed   string        `env:"ETHERSIGNAL_PROVIDER_WALLET_SEED"`
	SchemaID     string        `env:"ETHERSIGNAL_PROVIDER_SCHEMA_ID"`
	SNRThreshold int           `env:"ETHERSIGNAL_PROVIDER_SNR_THRESHOLD" envDefault:"10"`
	PollInterval time.Duration `env:"ETHERSIGNAL_PROVIDER_POLL_INTERVAL" envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.NodeURL, "node-url", cfg.NodeURL, "The ledger node base URL")
	fs.StringVar(&cfg.SchemaID, "schema-id", cfg.SchemaID, "The telemetry stream schema id")
	fs.IntVar(&cfg.SNRThreshold, "snr-threshold", cfg.SNRThreshold, "Minimum SNR in dB that earns a grant")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Telemetry poll interval")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the provider runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProvider, func(ctx context.Context) error {
		return providerapp.Run(ctx, providerapp.RuntimeConfig{
			NodeURL:      cfg.NodeURL,
			WalletSeed:   cfg.WalletSeed,
			SchemaID:     cfg.SchemaID,
			SNRThreshold: int16(cfg.SNRThreshold),
			PollInterval: cfg.PollInterval,
		})
	})
}
