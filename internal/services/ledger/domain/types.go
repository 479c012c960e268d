// Package domain implements the spectrum-access contract and the minimal
// chain semantics the ledger node enforces around it: signature checks,
// gapless per-sender nonces, balance debits, and serialized commits.
package domain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a write collides with an existing record that holds
// different contents, such as a schema name registered with another layout.
var ErrConflict = errors.New("record conflicts with existing state")

// Grant is the authoritative, time-bounded transmission right for one device.
// A grant submission fully replaces any prior record; there is no partial
// update.
type Grant struct {
	Provider     string
	PaidAmount   *big.Int // capped at 96 bits
	FrequencyMHz uint32
	ExpiresAt    uint32 // epoch seconds
}

// ActiveAt reports whether the grant permits transmission at the given time.
// Expiry is evaluated lazily; an expired grant stays in storage until
// overwritten but is inactive for every predicate.
func (g Grant) ActiveAt(now time.Time) bool {
	return int64(g.ExpiresAt) > now.Unix()
}

// ContractState is the deployed contract's configuration and collected funds.
type ContractState struct {
	Owner      string
	MinPayment *big.Int
	Collected  *big.Int
}

// Account is one chain account: spendable balance and last committed nonce.
type Account struct {
	Address string
	Balance *big.Int
	Nonce   uint64
}

// EventType tags contract state-change events.
type EventType string

const (
	EventAccessGranted  EventType = "access_granted"
	EventAccessRevoked  EventType = "access_revoked"
	EventFundsWithdrawn EventType = "funds_withdrawn"
)

// Event is one emitted contract state change.
type Event struct {
	Seq             int64
	Type            EventType
	DeviceID        string
	Provider        string
	FrequencyMHz    uint32
	DurationSeconds uint32
	Amount          *big.Int
	Timestamp       time.Time
}

// Schema describes one registered record stream layout.
type Schema struct {
	ID         string
	Name       string
	Layout     string
	RecordSize int
}

// GrantStore persists grant records keyed by device id.
type GrantStore interface {
	PutGrant(ctx context.Context, deviceID string, grant Grant) error
	GetGrant(ctx context.Context, deviceID string) (Grant, error)
	DeleteGrant(ctx context.Context, deviceID string) error
}

// StateStore persists the deployed contract state.
type StateStore interface {
	GetContractState(ctx context.Context) (ContractState, error)
	PutContractState(ctx context.Context, state ContractState) error
}

// EventStore persists emitted contract events in commit order.
type EventStore interface {
	AppendEvent(ctx context.Context, event Event) (int64, error)
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]Event, error)
}

// AccountStore persists chain accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, address string) (Account, error)
	PutAccount(ctx context.Context, account Account) error
}

// StreamStore persists registered schemas and their append-only records.
type StreamStore interface {
	PutSchema(ctx context.Context, schema Schema) error
	GetSchema(ctx context.Context, id string) (Schema, error)
	AppendRecord(ctx context.Context, schemaID string, record []byte) (uint64, error)
	CountRecords(ctx context.Context, schemaID string) (uint64, error)
	GetRecord(ctx context.Context, schemaID string, index uint64) ([]byte, error)
}
