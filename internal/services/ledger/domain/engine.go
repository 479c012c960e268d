package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
)

// faucetBalance is credited to an account the first time the node sees it.
// This is development-chain behavior: it keeps the marketplace runnable
// without a separate funding flow.
var faucetBalance = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// Engine applies signed transactions to the contract one at a time. The
// commit mutex is the arbiter for conflicting concurrent submissions:
// whatever commits last wins.
type Engine struct {
	mu       sync.Mutex
	contract *Contract
	accounts AccountStore
	clock    func() time.Time
}

// NewEngine builds a transaction engine. A nil clock defaults to time.Now.
func NewEngine(contract *Contract, accounts AccountStore, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{contract: contract, accounts: accounts, clock: clock}
}

// Contract exposes the underlying contract for read-only projections.
func (e *Engine) Contract() *Contract {
	return e.contract
}

// Apply verifies and commits one transaction. A rejected transaction leaves
// every store untouched, including the sender's nonce, so the client can
// resubmit with the same sequence number.
func (e *Engine) Apply(ctx context.Context, tx chain.Tx) (chain.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := chain.Verify(tx); err != nil {
		return chain.Receipt{}, err
	}
	value, err := chain.ParseValue(tx.Value)
	if err != nil {
		return chain.Receipt{}, platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid transaction value", err)
	}

	account, err := e.loadOrCreateAccount(ctx, tx.Sender)
	if err != nil {
		return chain.Receipt{}, err
	}
	if tx.Nonce != account.Nonce+1 {
		return chain.Receipt{}, platformerrors.WithMetadata(platformerrors.CodeNonceConflict,
			"transaction nonce out of sequence",
			map[string]string{
				"sender": tx.Sender,
				"nonce":  fmt.Sprint(tx.Nonce),
				"want":   fmt.Sprint(account.Nonce + 1),
			})
	}
	if account.Balance.Cmp(value) < 0 {
		return chain.Receipt{}, platformerrors.New(platformerrors.CodeInsufficientFunds, "sender balance below transaction value")
	}

	credit := big.NewInt(0)
	switch tx.Call {
	case chain.CallGrantAccess:
		err = e.contract.GrantAccess(ctx, tx.Sender, tx.DeviceID, tx.Frequency, tx.Duration, value)
	case chain.CallRevokeAccess:
		err = e.contract.RevokeAccess(ctx, tx.Sender, tx.DeviceID)
	case chain.CallWithdraw:
		credit, err = e.contract.Withdraw(ctx, tx.Sender)
	case chain.CallEmergencyWithdraw:
		credit, err = e.contract.EmergencyWithdraw(ctx, tx.Sender)
	default:
		err = platformerrors.WithMetadata(platformerrors.CodeUnknownCall,
			"unsupported contract call", map[string]string{"call": tx.Call})
	}
	if err != nil {
		return chain.Receipt{}, err
	}

	account.Nonce = tx.Nonce
	account.Balance = new(big.Int).Sub(account.Balance, value)
	if credit != nil && credit.Sign() > 0 {
		account.Balance = account.Balance.Add(account.Balance, credit)
	}
	if err := e.accounts.PutAccount(ctx, account); err != nil {
		return chain.Receipt{}, fmt.Errorf("update account: %w", err)
	}

	return chain.Receipt{TxID: tx.ID(), Status: "committed"}, nil
}

// AccountInfo returns the account for an address, faucet-funding it on
// first sight so reads and writes observe the same view.
func (e *Engine) AccountInfo(ctx context.Context, address string) (Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadOrCreateAccount(ctx, address)
}

func (e *Engine) loadOrCreateAccount(ctx context.Context, address string) (Account, error) {
	account, err := e.accounts.GetAccount(ctx, address)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("read account: %w", err)
	}
	account = Account{
		Address: address,
		Balance: new(big.Int).Set(faucetBalance),
		Nonce:   0,
	}
	if err := e.accounts.PutAccount(ctx, account); err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}
