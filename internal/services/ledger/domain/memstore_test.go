package domain

import (
	"context"
	"math/big"
)

// In-memory stores for exercising the contract and engine without SQLite.

type memStores struct {
	grants   map[string]Grant
	state    *ContractState
	events   []Event
	accounts map[string]Account
}

func newMemStores() *memStores {
	return &memStores{
		grants:   map[string]Grant{},
		accounts: map[string]Account{},
	}
}

func (m *memStores) PutGrant(_ context.Context, deviceID string, grant Grant) error {
	m.grants[deviceID] = grant
	return nil
}

func (m *memStores) GetGrant(_ context.Context, deviceID string) (Grant, error) {
	grant, ok := m.grants[deviceID]
	if !ok {
		return Grant{}, ErrNotFound
	}
	return grant, nil
}

func (m *memStores) DeleteGrant(_ context.Context, deviceID string) error {
	delete(m.grants, deviceID)
	return nil
}

func (m *memStores) GetContractState(_ context.Context) (ContractState, error) {
	if m.state == nil {
		return ContractState{}, ErrNotFound
	}
	return ContractState{
		Owner:      m.state.Owner,
		MinPayment: new(big.Int).Set(m.state.MinPayment),
		Collected:  new(big.Int).Set(m.state.Collected),
	}, nil
}

func (m *memStores) PutContractState(_ context.Context, state ContractState) error {
	m.state = &state
	return nil
}

func (m *memStores) AppendEvent(_ context.Context, event Event) (int64, error) {
	event.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return event.Seq, nil
}

func (m *memStores) ListEvents(_ context.Context, afterSeq int64, limit int) ([]Event, error) {
	var out []Event
	for _, event := range m.events {
		if event.Seq <= afterSeq {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStores) GetAccount(_ context.Context, address string) (Account, error) {
	account, ok := m.accounts[address]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (m *memStores) PutAccount(_ context.Context, account Account) error {
	m.accounts[account.Address] = account
	return nil
}
