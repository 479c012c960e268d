// Package ledgerd parses ledger node command flags and launches the node
// runtime.
package ledgerd

import (
	"context"
	"flag"

	entrypoint "github.com/Shreshtthh/EtherSignal/internal/platform/cmd"
	ledgerapp "github.com/Shreshtthh/EtherSignal/internal/services/ledger/app"
)

// Config holds ledger node command configuration.
type Config struct {
	Port   int    `env:"ETHERSIGNAL_LEDGER_PORT" envDefault:"8545"`
	DBPath string `env:"ETHERSIGNAL_LEDGER_DB_PATH" envDefault:"data/ledger.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The node HTTP API port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The node SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the ledger node runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return ledgerapp.Run(ctx, ledgerapp.RuntimeConfig{
			Port:   cfg.Port,
			DBPath: cfg.DBPath,
		})
	})
}
