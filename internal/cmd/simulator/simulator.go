// Package simulator parses simulator command flags and launches the fleet
// runtime.
package simulator

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/Shreshtthh/EtherSignal/internal/platform/cmd"
	simulatorapp "github.com/Shreshtthh/EtherSignal/internal/services/simulator/app"
)

// Config holds simulator command configuration.
type Config struct {
	NodeURL     string        `env:"ETHERSIGNAL_SIMULATOR_NODE_URL" envDefault:"http://localhost:8545"`
	DeviceCount int           `env:"ETHERSIGNAL_SIMULATOR_DEVICE_COUNT" envDefault:"3"`
	Interval    time.Duration `env:"ETHERSIGNAL_SIMULATOR_INTERVAL" envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.NodeURL, "node-url", cfg.NodeURL, "The ledger node base URL")
	fs.IntVar(&cfg.DeviceCount, "devices", cfg.DeviceCount, "Number of simulated devices")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Publish cadence per device")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the simulator runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSimulator, func(ctx context.Context) error {
		return simulatorapp.Run(ctx, simulatorapp.RuntimeConfig{
			NodeURL:     cfg.NodeURL,
			DeviceCount: cfg.DeviceCount,
			Interval:    cfg.Interval,
		})
	})
}
