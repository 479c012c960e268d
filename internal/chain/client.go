package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"

	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
	"github.com/Shreshtthh/EtherSignal/internal/platform/id"
	"github.com/Shreshtthh/EtherSignal/internal/platform/timeouts"
)

// GrantInfo is the node's read-only projection of a stored grant.
type GrantInfo struct {
	Exists       bool   `json:"exists"`
	Provider     string `json:"provider"`
	PaidAmount   string `json:"paidAmount"`
	FrequencyMHz uint32 `json:"frequencyMHz"`
	ExpiresAt    uint32 `json:"expiresAt"`
}

// AccountInfo is the node's view of one account.
type AccountInfo struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Client is the narrow HTTP interface the provider and simulator processes
// use to reach a ledger node. It signs mutating calls with its wallet and
// tracks the account nonce locally; the caller is responsible for
// serializing mutating submissions (see the provider submission queue).
type Client struct {
	baseURL    string
	httpClient *http.Client
	wallet     *Wallet

	mu         sync.Mutex
	nonceKnown bool
	lastNonce  uint64
}

// NewClient builds a node client. The wallet may be nil for read-only use.
func NewClient(baseURL string, wallet *Wallet) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeouts.NodeRequest},
		wallet:     wallet,
	}
}

// Wallet returns the wallet backing this client, if any.
func (c *Client) Wallet() *Wallet {
	return c.wallet
}

// BaseURL returns the node address this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitGrant signs and submits a grant_access transaction.
func (c *Client) SubmitGrant(ctx context.Context, deviceID [32]byte, frequencyMHz, durationSeconds uint32, payment *big.Int) (Receipt, error) {
	if payment == nil {
		payment = big.NewInt(0)
	}
	return c.submit(ctx, Tx{
		Call:      CallGrantAccess,
		DeviceID:  EncodeDeviceID(deviceID),
		Frequency: frequencyMHz,
		Duration:  durationSeconds,
		Value:     payment.String(),
	})
}

// SubmitRevoke signs and submits a revoke_access transaction.
func (c *Client) SubmitRevoke(ctx context.Context, deviceID [32]byte) (Receipt, error) {
	return c.submit(ctx, Tx{
		Call:     CallRevokeAccess,
		DeviceID: EncodeDeviceID(deviceID),
		Value:    "0",
	})
}

// SubmitWithdraw signs and submits a withdraw or emergency_withdraw transaction.
func (c *Client) SubmitWithdraw(ctx context.Context, emergency bool) (Receipt, error) {
	call := CallWithdraw
	if emergency {
		call = CallEmergencyWithdraw
	}
	return c.submit(ctx, Tx{Call: call, Value: "0"})
}

func (c *Client) submit(ctx context.Context, tx Tx) (Receipt, error) {
	if c.wallet == nil {
		return Receipt{}, fmt.Errorf("client has no wallet for signing")
	}

	nonce, err := c.nextNonce(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("resolve nonce: %w", err)
	}
	tx.Nonce = nonce
	c.wallet.SignTx(&tx)

	var receipt Receipt
	if err := c.post(ctx, "/v1/tx", tx, &receipt); err != nil {
		if platformerrors.CodeOf(err) == platformerrors.CodeNonceConflict {
			c.forgetNonce()
		}
		return Receipt{}, err
	}

	c.mu.Lock()
	c.nonceKnown = true
	c.lastNonce = nonce
	c.mu.Unlock()
	return receipt, nil
}

func (c *Client) nextNonce(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if c.nonceKnown {
		next := c.lastNonce + 1
		c.mu.Unlock()
		return next, nil
	}
	c.mu.Unlock()

	account, err := c.Account(ctx, c.wallet.Address())
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.nonceKnown = true
	c.lastNonce = account.Nonce
	next := c.lastNonce + 1
	c.mu.Unlock()
	return next, nil
}

func (c *Client) forgetNonce() {
	c.mu.Lock()
	c.nonceKnown = false
	c.mu.Unlock()
}

// Account fetches balance and nonce for an address.
func (c *Client) Account(ctx context.Context, address string) (AccountInfo, error) {
	var account AccountInfo
	err := c.get(ctx, "/v1/accounts/"+address, &account)
	return account, err
}

// CanTransmit reports whether the device holds an unexpired grant.
func (c *Client) CanTransmit(ctx context.Context, deviceID [32]byte) (bool, error) {
	var body struct {
		CanTransmit bool `json:"canTransmit"`
	}
	err := c.get(ctx, "/v1/contract/grants/"+EncodeDeviceID(deviceID)+"/can-transmit", &body)
	return body.CanTransmit, err
}

// GetGrant fetches the stored grant projection for a device.
func (c *Client) GetGrant(ctx context.Context, deviceID [32]byte) (GrantInfo, error) {
	var grant GrantInfo
	err := c.get(ctx, "/v1/contract/grants/"+EncodeDeviceID(deviceID), &grant)
	return grant, err
}

// GetGrantExpiration fetches the expiry time of a device's grant.
func (c *Client) GetGrantExpiration(ctx context.Context, deviceID [32]byte) (uint32, error) {
	var body struct {
		ExpiresAt uint32 `json:"expiresAt"`
	}
	err := c.get(ctx, "/v1/contract/grants/"+EncodeDeviceID(deviceID)+"/expiration", &body)
	return body.ExpiresAt, err
}

// ContractBalance fetches the contract's collected funds.
func (c *Client) ContractBalance(ctx context.Context) (*big.Int, error) {
	var body struct {
		Balance string `json:"balance"`
	}
	if err := c.get(ctx, "/v1/contract/balance", &body); err != nil {
		return nil, err
	}
	return ParseValue(body.Balance)
}

// Deploy initializes the spectrum-access contract on a fresh node.
func (c *Client) Deploy(ctx context.Context, owner string, minPayment *big.Int) error {
	request := struct {
		Owner      string `json:"owner"`
		MinPayment string `json:"minPayment"`
	}{Owner: owner, MinPayment: minPayment.String()}
	return c.post(ctx, "/v1/contract/deploy", request, nil)
}

// RegisterSchema registers a record schema and returns its deterministic id.
// Registering an identical schema again succeeds with the same id.
func (c *Client) RegisterSchema(ctx context.Context, name, layout string, recordSize int) (string, error) {
	request := struct {
		Name       string `json:"name"`
		Layout     string `json:"layout"`
		RecordSize int    `json:"recordSize"`
	}{Name: name, Layout: layout, RecordSize: recordSize}
	var body struct {
		SchemaID string `json:"schemaId"`
	}
	if err := c.post(ctx, "/v1/schemas", request, &body); err != nil {
		return "", err
	}
	return body.SchemaID, nil
}

// AppendRecord appends one encoded record to a stream and returns its index.
func (c *Client) AppendRecord(ctx context.Context, schemaID string, record []byte) (uint64, error) {
	request := struct {
		Record []byte `json:"record"`
	}{Record: record}
	var body struct {
		Index uint64 `json:"index"`
	}
	if err := c.post(ctx, "/v1/streams/"+schemaID+"/records", request, &body); err != nil {
		return 0, err
	}
	return body.Index, nil
}

// RecordCount returns the total number of records in a stream.
func (c *Client) RecordCount(ctx context.Context, schemaID string) (uint64, error) {
	var body struct {
		Count uint64 `json:"count"`
	}
	err := c.get(ctx, "/v1/streams/"+schemaID+"/records/count", &body)
	return body.Count, err
}

// RecordAt fetches the record stored at the given stream index.
func (c *Client) RecordAt(ctx context.Context, schemaID string, index uint64) ([]byte, error) {
	var body struct {
		Index  uint64 `json:"index"`
		Record []byte `json:"record"`
	}
	if err := c.get(ctx, fmt.Sprintf("/v1/streams/%s/records/%d", schemaID, index), &body); err != nil {
		return nil, err
	}
	return body.Record, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	// Request ids let node-side logs be correlated with a client retry.
	if requestID, err := id.NewID(); err == nil {
		req.Header.Set("X-Request-Id", requestID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read node response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode node response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		return platformerrors.New(platformerrors.Code(apiErr.Code), apiErr.Message)
	}
	return fmt.Errorf("node returned status %d: %s", status, strings.TrimSpace(string(body)))
}
