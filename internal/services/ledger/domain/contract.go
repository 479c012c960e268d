package domain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
)

// Duration bounds for a grant, in seconds.
const (
	MinDurationSeconds = 1
	MaxDurationSeconds = 3600
)

// maxPaymentBits caps a grant payment at the stored field width.
const maxPaymentBits = 96

// Contract is the spectrum-access contract: one grant record per device,
// payment and duration validation, lazy expiry, provider-only revocation,
// and owner-only fund sweeps. All mutations must arrive through the chain
// engine, which serializes commits.
type Contract struct {
	grants GrantStore
	state  StateStore
	events EventStore
	clock  func() time.Time
}

// NewContract builds a contract over the given stores. A nil clock defaults
// to time.Now.
func NewContract(grants GrantStore, state StateStore, events EventStore, clock func() time.Time) *Contract {
	if clock == nil {
		clock = time.Now
	}
	return &Contract{grants: grants, state: state, events: events, clock: clock}
}

// Deploy initializes the contract with its owner and minimum grant payment.
// A node hosts at most one deployment.
func (c *Contract) Deploy(ctx context.Context, owner string, minPayment *big.Int) error {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if owner == "" {
		return fmt.Errorf("owner address is required")
	}
	if minPayment == nil || minPayment.Sign() <= 0 {
		return fmt.Errorf("minimum payment must be positive")
	}

	_, err := c.state.GetContractState(ctx)
	if err == nil {
		return platformerrors.New(platformerrors.CodeAlreadyDeployed, "contract is already deployed")
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read contract state: %w", err)
	}

	return c.state.PutContractState(ctx, ContractState{
		Owner:      owner,
		MinPayment: new(big.Int).Set(minPayment),
		Collected:  big.NewInt(0),
	})
}

// GrantAccess validates payment, duration, and frequency, then
// unconditionally overwrites any existing grant for the device. Overwrite is
// deliberate: a later payer replaces an earlier provider's still-active
// grant, and commit order is the only arbiter.
func (c *Contract) GrantAccess(ctx context.Context, caller, deviceID string, frequencyMHz, durationSeconds uint32, payment *big.Int) error {
	state, err := c.deployedState(ctx)
	if err != nil {
		return err
	}
	if payment == nil || payment.Cmp(state.MinPayment) < 0 {
		return platformerrors.WithMetadata(platformerrors.CodeInsufficientPayment,
			"payment below minimum unit price",
			map[string]string{"deviceId": deviceID, "minPayment": state.MinPayment.String()})
	}
	if payment.BitLen() > maxPaymentBits {
		return platformerrors.New(platformerrors.CodePaymentOverflow, "payment exceeds 96 bits")
	}
	if durationSeconds < MinDurationSeconds || durationSeconds > MaxDurationSeconds {
		return platformerrors.WithMetadata(platformerrors.CodeInvalidDuration,
			"duration outside permitted range",
			map[string]string{"deviceId": deviceID, "durationSeconds": fmt.Sprint(durationSeconds)})
	}
	if frequencyMHz == 0 {
		return platformerrors.New(platformerrors.CodeInvalidFrequency, "frequency must be nonzero")
	}

	now := c.clock()
	grant := Grant{
		Provider:     caller,
		PaidAmount:   new(big.Int).Set(payment),
		FrequencyMHz: frequencyMHz,
		ExpiresAt:    uint32(now.Unix() + int64(durationSeconds)),
	}
	if err := c.grants.PutGrant(ctx, deviceID, grant); err != nil {
		return fmt.Errorf("store grant: %w", err)
	}

	state.Collected = new(big.Int).Add(state.Collected, payment)
	if err := c.state.PutContractState(ctx, state); err != nil {
		return fmt.Errorf("update collected funds: %w", err)
	}

	if _, err := c.events.AppendEvent(ctx, Event{
		Type:            EventAccessGranted,
		DeviceID:        deviceID,
		Provider:        caller,
		FrequencyMHz:    frequencyMHz,
		DurationSeconds: durationSeconds,
		Amount:          new(big.Int).Set(payment),
		Timestamp:       now,
	}); err != nil {
		return fmt.Errorf("append granted event: %w", err)
	}
	return nil
}

// RevokeAccess deletes the device's grant. Only the grant's provider may
// revoke, and only while the grant is still active; an expired grant
// self-clears conceptually and need not be revoked.
func (c *Contract) RevokeAccess(ctx context.Context, caller, deviceID string) error {
	if _, err := c.deployedState(ctx); err != nil {
		return err
	}

	grant, err := c.grants.GetGrant(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A deleted or never-created grant has a zeroed provider, so the
			// caller can never match it.
			return platformerrors.New(platformerrors.CodeNotProvider, "no grant stored for device")
		}
		return fmt.Errorf("read grant: %w", err)
	}

	now := c.clock()
	if !grant.ActiveAt(now) {
		return platformerrors.WithMetadata(platformerrors.CodeGrantExpired,
			"grant already expired",
			map[string]string{"deviceId": deviceID, "expiresAt": fmt.Sprint(grant.ExpiresAt)})
	}
	if grant.Provider != caller {
		return platformerrors.New(platformerrors.CodeNotProvider, "caller is not the grant provider")
	}

	if err := c.grants.DeleteGrant(ctx, deviceID); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if _, err := c.events.AppendEvent(ctx, Event{
		Type:      EventAccessRevoked,
		DeviceID:  deviceID,
		Provider:  caller,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("append revoked event: %w", err)
	}
	return nil
}

// CanTransmit reports whether a grant exists for the device and has not
// expired.
func (c *Contract) CanTransmit(ctx context.Context, deviceID string) (bool, error) {
	grant, err := c.grants.GetGrant(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read grant: %w", err)
	}
	return grant.ActiveAt(c.clock()), nil
}

// GetGrant returns the stored grant for a device, if any.
func (c *Contract) GetGrant(ctx context.Context, deviceID string) (Grant, bool, error) {
	grant, err := c.grants.GetGrant(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, false, nil
		}
		return Grant{}, false, fmt.Errorf("read grant: %w", err)
	}
	return grant, true, nil
}

// GetGrantExpiration returns the expiry time of the device's grant, or zero
// when no grant is stored.
func (c *Contract) GetGrantExpiration(ctx context.Context, deviceID string) (uint32, error) {
	grant, found, err := c.GetGrant(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return grant.ExpiresAt, nil
}

// Balance returns the contract's collected, unswept funds.
func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	state, err := c.deployedState(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(state.Collected), nil
}

// Withdraw sweeps collected funds to the owner. It fails when the caller is
// not the owner or when there is nothing to sweep.
func (c *Contract) Withdraw(ctx context.Context, caller string) (*big.Int, error) {
	return c.sweep(ctx, caller, false)
}

// EmergencyWithdraw sweeps collected funds to the owner without the
// nonzero-balance requirement.
func (c *Contract) EmergencyWithdraw(ctx context.Context, caller string) (*big.Int, error) {
	return c.sweep(ctx, caller, true)
}

func (c *Contract) sweep(ctx context.Context, caller string, emergency bool) (*big.Int, error) {
	state, err := c.deployedState(ctx)
	if err != nil {
		return nil, err
	}
	if caller != state.Owner {
		return nil, platformerrors.New(platformerrors.CodeOnlyOwner, "caller is not the contract owner")
	}
	if !emergency && state.Collected.Sign() == 0 {
		return nil, platformerrors.New(platformerrors.CodeWithdrawFailed, "no collected funds to withdraw")
	}

	amount := new(big.Int).Set(state.Collected)
	state.Collected = big.NewInt(0)
	if err := c.state.PutContractState(ctx, state); err != nil {
		return nil, fmt.Errorf("reset collected funds: %w", err)
	}
	if _, err := c.events.AppendEvent(ctx, Event{
		Type:      EventFundsWithdrawn,
		Provider:  caller,
		Amount:    amount,
		Timestamp: c.clock(),
	}); err != nil {
		return nil, fmt.Errorf("append withdrawn event: %w", err)
	}
	return amount, nil
}

func (c *Contract) deployedState(ctx context.Context) (ContractState, error) {
	state, err := c.state.GetContractState(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ContractState{}, platformerrors.New(platformerrors.CodeNotDeployed, "contract is not deployed")
		}
		return ContractState{}, fmt.Errorf("read contract state: %w", err)
	}
	return state, nil
}
