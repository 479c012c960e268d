// Package integration exercises the full marketplace path: samples published
// to a real node's stream, polled back out, decided on, and committed as
// signed transactions against the same node.
package integration

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/api"
	ledgerapp "github.com/Shreshtthh/EtherSignal/internal/services/ledger/app"
	ledgerdomain "github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/storage/sqlite"
	providerdomain "github.com/Shreshtthh/EtherSignal/internal/services/provider/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/provider/poll"
	"github.com/Shreshtthh/EtherSignal/internal/services/provider/submit"
	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

const (
	ownerSeed    = "0100000000000000000000000000000000000000000000000000000000000001"
	providerSeed = "0200000000000000000000000000000000000000000000000000000000000002"
	snrThreshold = 10
)

var device = [32]byte{0xaa, 0xbb}

func startNode(t *testing.T) string {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "node.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	contract := ledgerdomain.NewContract(store, store, store, time.Now)
	engine := ledgerdomain.NewEngine(contract, store, time.Now)
	service := ledgerapp.NewService(engine, store, store)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, service)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func TestGrantPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	nodeURL := startNode(t)

	ownerWallet, err := chain.NewWalletFromSeed(ownerSeed)
	if err != nil {
		t.Fatalf("owner wallet: %v", err)
	}
	owner := chain.NewClient(nodeURL, ownerWallet)
	if err := owner.Deploy(ctx, ownerWallet.Address(), big.NewInt(1_000)); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	providerWallet, err := chain.NewWalletFromSeed(providerSeed)
	if err != nil {
		t.Fatalf("provider wallet: %v", err)
	}
	provider := chain.NewClient(nodeURL, providerWallet)

	schemaID, err := provider.RegisterSchema(ctx, telemetry.SchemaName, telemetry.Layout, telemetry.RecordSize)
	if err != nil {
		t.Fatalf("register schema: %v", err)
	}

	// Provider pipeline: decision engine, serialized submissions, poller.
	engine := providerdomain.NewEngine(snrThreshold)
	queue := submit.NewQueue()
	queueCtx, stopQueue := context.WithCancel(ctx)
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		_ = queue.Run(queueCtx)
	}()
	t.Cleanup(func() {
		stopQueue()
		<-queueDone
	})

	var actions []providerdomain.Action
	settled := make(chan error, 8)
	handler := func(ctx context.Context, _ uint64, record []byte) {
		sample, err := telemetry.Decode(record)
		if err != nil {
			t.Errorf("decode record: %v", err)
			return
		}
		decision := engine.Evaluate(sample, time.Now())
		actions = append(actions, decision.Action)

		switch decision.Action {
		case providerdomain.ActionGrant:
			queue.Enqueue(submit.Task{
				Run: func(ctx context.Context) error {
					_, err := provider.SubmitGrant(ctx, sample.DeviceID,
						providerdomain.GrantFrequencyMHz,
						uint32(providerdomain.GrantDuration/time.Second), sample.BidPrice)
					return err
				},
				Done: func(err error) {
					if err != nil {
						engine.Rollback(decision)
					} else {
						engine.Confirm(decision)
					}
					settled <- err
				},
			})
		case providerdomain.ActionRevoke:
			queue.Enqueue(submit.Task{
				Run: func(ctx context.Context) error {
					_, err := provider.SubmitRevoke(ctx, sample.DeviceID)
					return err
				},
				Done: func(err error) {
					if err != nil {
						engine.Rollback(decision)
					} else {
						engine.Confirm(decision)
					}
					settled <- err
				},
			})
		}
	}
	poller := poll.New(provider, schemaID, handler, time.Now)

	// The canonical threshold-crossing sequence: grant, hold, revoke, grant.
	snrs := []int16{12, 14, 8, 16}
	wantActions := []providerdomain.Action{
		providerdomain.ActionGrant,
		providerdomain.ActionNone,
		providerdomain.ActionRevoke,
		providerdomain.ActionGrant,
	}

	for i, snr := range snrs {
		sample := telemetry.Sample{
			Timestamp:    uint64(time.Now().UnixMilli()),
			DeviceID:     device,
			FrequencyMHz: 2400,
			SNRdB:        snr,
			Interference: 1,
			BidPrice:     big.NewInt(2_000_000),
		}
		record, err := telemetry.Encode(sample)
		if err != nil {
			t.Fatalf("encode sample %d: %v", i, err)
		}
		if _, err := provider.AppendRecord(ctx, schemaID, record); err != nil {
			t.Fatalf("publish sample %d: %v", i, err)
		}

		poller.Tick(ctx)

		if wantActions[i] != providerdomain.ActionNone {
			select {
			case err := <-settled:
				if err != nil {
					t.Fatalf("sample %d submission: %v", i, err)
				}
			case <-time.After(10 * time.Second):
				t.Fatalf("sample %d submission never settled", i)
			}
		}
	}

	if len(actions) != len(wantActions) {
		t.Fatalf("actions = %v, want %v", actions, wantActions)
	}
	for i := range wantActions {
		if actions[i] != wantActions[i] {
			t.Fatalf("action %d = %v, want %v", i, actions[i], wantActions[i])
		}
	}

	// The ledger converged with the provider's view: final grant is live.
	can, err := provider.CanTransmit(ctx, device)
	if err != nil {
		t.Fatalf("can transmit: %v", err)
	}
	if !can {
		t.Fatal("expected active grant after final sample")
	}
	if engine.Phase(device) != providerdomain.PhaseActive {
		t.Fatalf("phase = %v, want %v", engine.Phase(device), providerdomain.PhaseActive)
	}

	// Three transactions committed: grant, revoke, grant.
	account, err := provider.Account(ctx, providerWallet.Address())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Nonce != 3 {
		t.Fatalf("nonce = %d, want 3", account.Nonce)
	}

	// Two grant payments collected.
	balance, err := provider.ContractBalance(ctx)
	if err != nil {
		t.Fatalf("contract balance: %v", err)
	}
	if balance.Cmp(big.NewInt(4_000_000)) != 0 {
		t.Fatalf("collected = %s, want 4000000", balance)
	}

	// Nothing was dispatched twice: the cursor sits at the last record.
	if poller.Cursor() != int64(len(snrs))-1 {
		t.Fatalf("cursor = %d, want %d", poller.Cursor(), len(snrs)-1)
	}
}
