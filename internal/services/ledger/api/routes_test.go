package api_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/api"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/app"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/storage/sqlite"
)

const (
	testOwnerSeed    = "aa00000000000000000000000000000000000000000000000000000000000001"
	testProviderSeed = "bb00000000000000000000000000000000000000000000000000000000000002"
)

var testDeviceID = [32]byte{0xde, 0xad, 0xbe, 0xef}

// newTestNode spins up the full node stack over a temp SQLite store and
// returns clients for the contract owner and a provider.
func newTestNode(t *testing.T, now *time.Time) (*chain.Client, *chain.Client) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "node.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := func() time.Time { return *now }
	contract := domain.NewContract(store, store, store, clock)
	engine := domain.NewEngine(contract, store, clock)
	service := app.NewService(engine, store, store)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, service)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ownerWallet, err := chain.NewWalletFromSeed(testOwnerSeed)
	if err != nil {
		t.Fatalf("owner wallet: %v", err)
	}
	providerWallet, err := chain.NewWalletFromSeed(testProviderSeed)
	if err != nil {
		t.Fatalf("provider wallet: %v", err)
	}

	ownerClient := chain.NewClient(server.URL, ownerWallet)
	if err := ownerClient.Deploy(context.Background(), ownerWallet.Address(), big.NewInt(1_000_000)); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return ownerClient, chain.NewClient(server.URL, providerWallet)
}

func TestGrantLifecycleOverHTTP(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, provider := newTestNode(t, &now)
	ctx := context.Background()

	receipt, err := provider.SubmitGrant(ctx, testDeviceID, 2400, 10, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("submit grant: %v", err)
	}
	if receipt.Status != "committed" || receipt.TxID == "" {
		t.Fatalf("receipt = %+v", receipt)
	}

	can, err := provider.CanTransmit(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("can transmit: %v", err)
	}
	if !can {
		t.Fatal("expected transmission right after grant")
	}

	grant, err := provider.GetGrant(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	if !grant.Exists {
		t.Fatal("expected grant projection to exist")
	}
	if grant.Provider != provider.Wallet().Address() {
		t.Fatalf("provider = %q, want %q", grant.Provider, provider.Wallet().Address())
	}
	if grant.FrequencyMHz != 2400 || grant.PaidAmount != "1000000" {
		t.Fatalf("grant = %+v", grant)
	}

	expiresAt, err := provider.GetGrantExpiration(ctx, testDeviceID)
	if err != nil {
		t.Fatalf("get expiration: %v", err)
	}
	if int64(expiresAt) != now.Unix()+10 {
		t.Fatalf("expiresAt = %d, want %d", expiresAt, now.Unix()+10)
	}

	balance, err := provider.ContractBalance(ctx)
	if err != nil {
		t.Fatalf("contract balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("balance = %s, want 1000000", balance)
	}

	if _, err := provider.SubmitRevoke(ctx, testDeviceID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if can, _ := provider.CanTransmit(ctx, testDeviceID); can {
		t.Fatal("expected no transmission right after revoke")
	}

	account, err := provider.Account(ctx, provider.Wallet().Address())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if account.Nonce != 2 {
		t.Fatalf("nonce = %d, want 2", account.Nonce)
	}
}

func TestCodedErrorsCrossTheWire(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	owner, provider := newTestNode(t, &now)
	ctx := context.Background()

	// Revoking a device with no grant maps to NotProvider on the client side.
	_, err := provider.SubmitRevoke(ctx, testDeviceID)
	if platformerrors.CodeOf(err) != platformerrors.CodeNotProvider {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeNotProvider)
	}

	// Underpaying is rejected without consuming the nonce, so a corrected
	// submission with the same sequence number commits.
	_, err = provider.SubmitGrant(ctx, testDeviceID, 2400, 10, big.NewInt(1))
	if platformerrors.CodeOf(err) != platformerrors.CodeInsufficientPayment {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeInsufficientPayment)
	}
	if _, err := provider.SubmitGrant(ctx, testDeviceID, 2400, 10, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("corrected grant: %v", err)
	}

	// A second deploy conflicts.
	err = owner.Deploy(ctx, owner.Wallet().Address(), big.NewInt(5))
	if platformerrors.CodeOf(err) != platformerrors.CodeAlreadyDeployed {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeAlreadyDeployed)
	}
}

func TestSchemaAndStreamEndpoints(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, provider := newTestNode(t, &now)
	ctx := context.Background()

	const (
		name   = "test.telemetry"
		layout = "ts:u64|value:u32"
	)
	id, err := provider.RegisterSchema(ctx, name, layout, 12)
	if err != nil {
		t.Fatalf("register schema: %v", err)
	}
	if len(id) != 64 {
		t.Fatalf("schema id length = %d, want 64", len(id))
	}

	// Identical re-registration returns the same id.
	again, err := provider.RegisterSchema(ctx, name, layout, 12)
	if err != nil {
		t.Fatalf("re-register schema: %v", err)
	}
	if again != id {
		t.Fatalf("schema id changed: %q vs %q", again, id)
	}

	// Same name, different layout conflicts.
	_, err = provider.RegisterSchema(ctx, name, "ts:u64|value:u64", 16)
	if platformerrors.CodeOf(err) != platformerrors.CodeSchemaMismatch {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeSchemaMismatch)
	}

	// Records must match the registered size.
	_, err = provider.AppendRecord(ctx, id, make([]byte, 5))
	if platformerrors.CodeOf(err) != platformerrors.CodeRecordMalformed {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeRecordMalformed)
	}

	record := make([]byte, 12)
	record[0] = 0x7f
	index, err := provider.AppendRecord(ctx, id, record)
	if err != nil {
		t.Fatalf("append record: %v", err)
	}
	if index != 0 {
		t.Fatalf("index = %d, want 0", index)
	}

	count, err := provider.RecordCount(ctx, id)
	if err != nil {
		t.Fatalf("record count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	got, err := provider.RecordAt(ctx, id, 0)
	if err != nil {
		t.Fatalf("record at: %v", err)
	}
	if len(got) != 12 || got[0] != 0x7f {
		t.Fatalf("record = %x", got)
	}

	_, err = provider.RecordAt(ctx, id, 99)
	if platformerrors.CodeOf(err) != platformerrors.CodeRecordNotFound {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeRecordNotFound)
	}

	_, err = provider.RecordCount(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	if platformerrors.CodeOf(err) != platformerrors.CodeSchemaNotFound {
		t.Fatalf("error code = %v, want %v", platformerrors.CodeOf(err), platformerrors.CodeSchemaNotFound)
	}
}

func TestEventFeedPagination(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, provider := newTestNode(t, &now)
	ctx := context.Background()

	for range 3 {
		if _, err := provider.SubmitGrant(ctx, testDeviceID, 2400, 10, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("submit grant: %v", err)
		}
	}

	resp, err := http.Get(provider.BaseURL() + "/v1/contract/events?afterSeq=1&limit=10")
	if err != nil {
		t.Fatalf("fetch events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Events []struct {
			Seq  int64  `json:"seq"`
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(body.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(body.Events))
	}
	for i, event := range body.Events {
		if event.Seq != int64(i+2) {
			t.Fatalf("event %d seq = %d, want %d", i, event.Seq, i+2)
		}
		if event.Type != string(domain.EventAccessGranted) {
			t.Fatalf("event type = %q, want %q", event.Type, domain.EventAccessGranted)
		}
	}
}
