// Package sqlite provides the SQLite-backed persistence for the ledger node.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Shreshtthh/EtherSignal/internal/platform/storage/sqlitemigrate"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/domain"
	"github.com/Shreshtthh/EtherSignal/internal/services/ledger/storage/sqlite/migrations"
)

// Store persists grants, accounts, contract state, events, schemas, and
// stream records in a single SQLite database.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the node store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutGrant stores or fully replaces the grant for a device.
func (s *Store) PutGrant(ctx context.Context, deviceID string, grant domain.Grant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO grants (device_id, provider, paid_amount, frequency_mhz, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
	provider = excluded.provider,
	paid_amount = excluded.paid_amount,
	frequency_mhz = excluded.frequency_mhz,
	expires_at = excluded.expires_at
`,
		deviceID,
		grant.Provider,
		bigString(grant.PaidAmount),
		grant.FrequencyMHz,
		grant.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

// GetGrant loads the grant for a device.
func (s *Store) GetGrant(ctx context.Context, deviceID string) (domain.Grant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Grant{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT provider, paid_amount, frequency_mhz, expires_at
FROM grants
WHERE device_id = ?
`, deviceID)

	var grant domain.Grant
	var paidAmount string
	if err := row.Scan(&grant.Provider, &paidAmount, &grant.FrequencyMHz, &grant.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Grant{}, domain.ErrNotFound
		}
		return domain.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	amount, err := parseBig(paidAmount)
	if err != nil {
		return domain.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	grant.PaidAmount = amount
	return grant, nil
}

// DeleteGrant removes the grant for a device.
func (s *Store) DeleteGrant(ctx context.Context, deviceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM grants WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

// GetContractState loads the deployed contract configuration.
func (s *Store) GetContractState(ctx context.Context) (domain.ContractState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContractState{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT owner, min_payment, collected FROM contract_state WHERE id = 1`)

	var state domain.ContractState
	var minPayment, collected string
	if err := row.Scan(&state.Owner, &minPayment, &collected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ContractState{}, domain.ErrNotFound
		}
		return domain.ContractState{}, fmt.Errorf("get contract state: %w", err)
	}
	var err error
	if state.MinPayment, err = parseBig(minPayment); err != nil {
		return domain.ContractState{}, fmt.Errorf("get contract state: %w", err)
	}
	if state.Collected, err = parseBig(collected); err != nil {
		return domain.ContractState{}, fmt.Errorf("get contract state: %w", err)
	}
	return state, nil
}

// PutContractState stores the contract configuration and collected funds.
func (s *Store) PutContractState(ctx context.Context, state domain.ContractState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO contract_state (id, owner, min_payment, collected)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	owner = excluded.owner,
	min_payment = excluded.min_payment,
	collected = excluded.collected
`,
		state.Owner,
		bigString(state.MinPayment),
		bigString(state.Collected),
	)
	if err != nil {
		return fmt.Errorf("put contract state: %w", err)
	}
	return nil
}

// GetAccount loads one chain account.
func (s *Store) GetAccount(ctx context.Context, address string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT address, balance, nonce FROM accounts WHERE address = ?`, address)

	var account domain.Account
	var balance string
	if err := row.Scan(&account.Address, &balance, &account.Nonce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	parsed, err := parseBig(balance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	account.Balance = parsed
	return account, nil
}

// PutAccount stores one chain account.
func (s *Store) PutAccount(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (address, balance, nonce)
VALUES (?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
	balance = excluded.balance,
	nonce = excluded.nonce
`,
		account.Address,
		bigString(account.Balance),
		account.Nonce,
	)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// AppendEvent stores one contract event and returns its commit sequence.
func (s *Store) AppendEvent(ctx context.Context, event domain.Event) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO contract_events (type, device_id, provider, frequency_mhz, duration_seconds, amount, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		string(event.Type),
		event.DeviceID,
		event.Provider,
		event.FrequencyMHz,
		event.DurationSeconds,
		bigString(event.Amount),
		event.Timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event seq: %w", err)
	}
	return seq, nil
}

// ListEvents returns events with seq greater than afterSeq, oldest first.
func (s *Store) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, type, device_id, provider, frequency_mhz, duration_seconds, amount, created_at
FROM contract_events
WHERE seq > ?
ORDER BY seq ASC
LIMIT ?
`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, limit)
	for rows.Next() {
		var event domain.Event
		var eventType, amount string
		var createdAt int64
		if err := rows.Scan(
			&event.Seq,
			&eventType,
			&event.DeviceID,
			&event.Provider,
			&event.FrequencyMHz,
			&event.DurationSeconds,
			&amount,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = domain.EventType(eventType)
		if event.Amount, err = parseBig(amount); err != nil {
			return nil, fmt.Errorf("scan event amount: %w", err)
		}
		event.Timestamp = time.UnixMilli(createdAt).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// PutSchema registers a record schema. Identical re-registration is a no-op.
func (s *Store) PutSchema(ctx context.Context, schema domain.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO schemas (id, name, layout, record_size)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`,
		schema.ID,
		schema.Name,
		schema.Layout,
		schema.RecordSize,
	)
	if err != nil {
		// The id is derived from name and layout, so a fresh id colliding on
		// the unique name means the same name was registered with a different
		// layout.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrConflict
		}
		return fmt.Errorf("put schema: %w", err)
	}
	return nil
}

// GetSchema loads a registered schema by id.
func (s *Store) GetSchema(ctx context.Context, id string) (domain.Schema, error) {
	if err := ctx.Err(); err != nil {
		return domain.Schema{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT id, name, layout, record_size FROM schemas WHERE id = ?`, id)

	var schema domain.Schema
	if err := row.Scan(&schema.ID, &schema.Name, &schema.Layout, &schema.RecordSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Schema{}, domain.ErrNotFound
		}
		return domain.Schema{}, fmt.Errorf("get schema: %w", err)
	}
	return schema, nil
}

// AppendRecord appends one record to a stream and returns its index.
// The next index is computed inside a transaction so concurrent producers
// cannot claim the same slot.
func (s *Store) AppendRecord(ctx context.Context, schemaID string, record []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}

	var next uint64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx) + 1, 0) FROM stream_records WHERE schema_id = ?`, schemaID)
	if err := row.Scan(&next); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("next record index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO stream_records (schema_id, idx, record, created_at)
VALUES (?, ?, ?, ?)
`, schemaID, next, record, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("append record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return next, nil
}

// CountRecords returns the number of records stored for a stream.
func (s *Store) CountRecords(ctx context.Context, schemaID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count uint64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stream_records WHERE schema_id = ?`, schemaID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// GetRecord loads the record at one stream index.
func (s *Store) GetRecord(ctx context.Context, schemaID string, index uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var record []byte
	row := s.sqlDB.QueryRowContext(ctx, `SELECT record FROM stream_records WHERE schema_id = ? AND idx = ?`, schemaID, index)
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func parseBig(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("malformed stored amount %q", value)
	}
	return parsed, nil
}

var (
	_ domain.GrantStore   = (*Store)(nil)
	_ domain.StateStore   = (*Store)(nil)
	_ domain.EventStore   = (*Store)(nil)
	_ domain.AccountStore = (*Store)(nil)
	_ domain.StreamStore  = (*Store)(nil)
)
