// Package app orchestrates the ledger node: transaction application, contract
// read projections, and the telemetry stream log.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/Shreshtthh/EtherSignal/internal/chain"
	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
)

// Service exposes the node operations the HTTP API serves.
type Service struct {
	engine  *domain.Engine
	streams domain.StreamStore
	events  domain.EventStore
}

// NewService builds the node service over the chain engine and stores.
func NewService(engine *domain.Engine, streams domain.StreamStore, events domain.EventStore) *Service {
	return &Service{engine: engine, streams: streams, events: events}
}

// SubmitTx verifies and commits one signed transaction.
func (s *Service) SubmitTx(ctx context.Context, tx chain.Tx) (chain.Receipt, error) {
	return s.engine.Apply(ctx, tx)
}

// Deploy initializes the contract with owner and minimum payment.
func (s *Service) Deploy(ctx context.Context, owner, minPayment string) error {
	amount, err := chain.ParseValue(minPayment)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodeRecordMalformed, "invalid minimum payment", err)
	}
	return s.engine.Contract().Deploy(ctx, owner, amount)
}

// Grant returns the stored grant projection for a device.
func (s *Service) Grant(ctx context.Context, deviceID string) (domain.Grant, bool, error) {
	return s.engine.Contract().GetGrant(ctx, deviceID)
}

// CanTransmit reports whether the device holds an unexpired grant.
func (s *Service) CanTransmit(ctx context.Context, deviceID string) (bool, error) {
	return s.engine.Contract().CanTransmit(ctx, deviceID)
}

// GrantExpiration returns the expiry time of the device's grant, zero when
// none is stored.
func (s *Service) GrantExpiration(ctx context.Context, deviceID string) (uint32, error) {
	return s.engine.Contract().GetGrantExpiration(ctx, deviceID)
}

// ContractBalance returns the contract's collected funds.
func (s *Service) ContractBalance(ctx context.Context) (*big.Int, error) {
	return s.engine.Contract().Balance(ctx)
}

// Events returns contract events after the given sequence number.
func (s *Service) Events(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	return s.events.ListEvents(ctx, afterSeq, limit)
}

// Account returns the account for an address, faucet-funding it on first
// sight.
func (s *Service) Account(ctx context.Context, address string) (domain.Account, error) {
	return s.engine.AccountInfo(ctx, address)
}

// RegisterSchema registers a record schema and returns its deterministic id.
// Registering an identical schema again returns the same id; the same name
// with a different layout is rejected.
func (s *Service) RegisterSchema(ctx context.Context, name, layout string, recordSize int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(layout) == "" {
		return "", platformerrors.New(platformerrors.CodeRecordMalformed, "schema name and layout are required")
	}
	if recordSize <= 0 {
		return "", platformerrors.New(platformerrors.CodeRecordMalformed, "record size must be positive")
	}

	id := schemaID(name, layout)
	err := s.streams.PutSchema(ctx, domain.Schema{
		ID:         id,
		Name:       name,
		Layout:     layout,
		RecordSize: recordSize,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", platformerrors.WithMetadata(platformerrors.CodeSchemaMismatch,
				"schema name already registered with a different layout",
				map[string]string{"name": name})
		}
		return "", fmt.Errorf("register schema: %w", err)
	}
	return id, nil
}

// AppendRecord validates one encoded record against its schema and appends it
// to the stream, returning its index.
func (s *Service) AppendRecord(ctx context.Context, schemaID string, record []byte) (uint64, error) {
	schema, err := s.schema(ctx, schemaID)
	if err != nil {
		return 0, err
	}
	if len(record) != schema.RecordSize {
		return 0, platformerrors.WithMetadata(platformerrors.CodeRecordMalformed,
			"record size does not match schema",
			map[string]string{
				"schemaId": schemaID,
				"got":      fmt.Sprint(len(record)),
				"want":     fmt.Sprint(schema.RecordSize),
			})
	}
	return s.streams.AppendRecord(ctx, schemaID, record)
}

// RecordCount returns the number of records stored for a stream.
func (s *Service) RecordCount(ctx context.Context, schemaID string) (uint64, error) {
	if _, err := s.schema(ctx, schemaID); err != nil {
		return 0, err
	}
	return s.streams.CountRecords(ctx, schemaID)
}

// RecordAt returns the record stored at one stream index.
func (s *Service) RecordAt(ctx context.Context, schemaID string, index uint64) ([]byte, error) {
	if _, err := s.schema(ctx, schemaID); err != nil {
		return nil, err
	}
	record, err := s.streams.GetRecord(ctx, schemaID, index)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, platformerrors.WithMetadata(platformerrors.CodeRecordNotFound,
				"no record at index",
				map[string]string{"schemaId": schemaID, "index": fmt.Sprint(index)})
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return record, nil
}

func (s *Service) schema(ctx context.Context, id string) (domain.Schema, error) {
	schema, err := s.streams.GetSchema(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Schema{}, platformerrors.WithMetadata(platformerrors.CodeSchemaNotFound,
				"schema is not registered", map[string]string{"schemaId": id})
		}
		return domain.Schema{}, fmt.Errorf("read schema: %w", err)
	}
	return schema, nil
}

// schemaID derives the deterministic schema id from name and layout.
func schemaID(name, layout string) string {
	sum := blake3.Sum256([]byte(name + "|" + layout))
	return hex.EncodeToString(sum[:])
}
