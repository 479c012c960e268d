// Package registrar parses registrar command flags and performs the one-shot
// telemetry schema registration.
package registrar

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	entrypoint "github.com/Shreshtthh/EtherSignal/internal/platform/cmd"
	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

// Config holds registrar command configuration.
type Config struct {
	NodeURL string `env:"ETHERSIGNAL_REGISTRAR_NODE_URL" envDefault:"http://localhost:8545"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.NodeURL, "node-url", cfg.NodeURL, "The ledger node base URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run registers the telemetry sample schema and prints its id. Registering
// an identical schema again is a success; the node returns the same id.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRegistrar, func(ctx context.Context) error {
		client := chain.NewClient(cfg.NodeURL, nil)
		id, err := client.RegisterSchema(ctx, telemetry.SchemaName, telemetry.Layout, telemetry.RecordSize)
		if err != nil {
			return fmt.Errorf("register telemetry schema: %w", err)
		}
		log.Printf("schema %s registered as %s", telemetry.SchemaName, id)
		fmt.Println(id)
		return nil
	})
}
