package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/platform/timeouts"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/api"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/storage/sqlite"
)

// RuntimeConfig controls ledger node startup.
type RuntimeConfig struct {
	Port   int
	DBPath string
}

const (
	defaultNodePort = 8545
	defaultNodeDB   = "data/ledger.db"
)

// Run opens the node store, mounts the HTTP API, and serves until the
// context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultNodePort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultNodeDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close ledger sqlite store: %v", closeErr)
		}
	}()

	contract := domain.NewContract(store, store, store, time.Now)
	engine := domain.NewEngine(contract, store, time.Now)
	service := NewService(engine, store, store)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, service)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ledger node listening on %s", server.Addr)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("serve node api: %w", serveErr)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown node api: %w", err)
	}
	return nil
}
