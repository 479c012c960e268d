// Package domain implements the grant decision engine: it maps a stream of
// telemetry samples to grant and revoke actions using optimistic per-device
// state, rolled back when a submission later fails.
package domain

import (
	"sync"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

// Grant parameters issued for every decision. The marketplace sells one fixed
// band in short slices; pricing comes from the sample's bid.
const (
	GrantFrequencyMHz = 2400
	GrantDuration     = 10 * time.Second
)

// Phase is the provider-local view of one device's grant lifecycle. It is a
// hint for suppressing redundant submissions; the ledger's grant record stays
// authoritative.
type Phase int

const (
	PhaseNoGrant Phase = iota
	PhasePendingGrant
	PhaseActive
	PhasePendingRevoke
)

func (p Phase) String() string {
	switch p {
	case PhaseNoGrant:
		return "no-grant"
	case PhasePendingGrant:
		return "pending-grant"
	case PhaseActive:
		return "active"
	case PhasePendingRevoke:
		return "pending-revoke"
	default:
		return "unknown"
	}
}

// Action is what the engine wants submitted for a sample.
type Action int

const (
	ActionNone Action = iota
	ActionGrant
	ActionRevoke
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionGrant:
		return "grant"
	case ActionRevoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// Decision is one evaluated sample: the action to submit plus the snapshot
// needed to undo the optimistic state change if the submission fails.
type Decision struct {
	Action   Action
	DeviceID [32]byte

	// pending is the optimistic phase this decision moved the device into.
	// Confirm and Rollback only apply while the device still sits in it, so a
	// stale callback cannot clobber a later decision.
	pending      Phase
	prevPhase    Phase
	prevExpires  time.Time
	afterExpires time.Time
}

type deviceState struct {
	phase        Phase
	expiresLocal time.Time
}

// Engine evaluates samples for all devices. Evaluate runs on the poller
// goroutine while Confirm and Rollback fire from submission callbacks, so
// state access is guarded.
type Engine struct {
	mu        sync.Mutex
	threshold int16
	devices   map[[32]byte]*deviceState
}

// NewEngine builds a decision engine with the given SNR threshold in dB.
func NewEngine(snrThreshold int16) *Engine {
	return &Engine{
		threshold: snrThreshold,
		devices:   map[[32]byte]*deviceState{},
	}
}

// Phase returns the current lifecycle phase for a device.
func (e *Engine) Phase(deviceID [32]byte) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.devices[deviceID]; ok {
		return state.phase
	}
	return PhaseNoGrant
}

// Evaluate maps one sample to at most one action and applies the optimistic
// state change before the submission runs, so samples arriving while it is
// in flight do not trigger duplicates.
func (e *Engine) Evaluate(sample telemetry.Sample, now time.Time) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.devices[sample.DeviceID]
	if !ok {
		state = &deviceState{phase: PhaseNoGrant}
		e.devices[sample.DeviceID] = state
	}

	decision := Decision{
		Action:      ActionNone,
		DeviceID:    sample.DeviceID,
		prevPhase:   state.phase,
		prevExpires: state.expiresLocal,
	}

	shouldGrant := sample.SNRdB >= e.threshold
	hasGrant := state.phase == PhaseActive || state.phase == PhasePendingGrant
	expired := state.expiresLocal.Before(now)

	switch {
	case shouldGrant && (!hasGrant || expired):
		decision.Action = ActionGrant
		decision.pending = PhasePendingGrant
		decision.afterExpires = now.Add(GrantDuration)
		state.phase = PhasePendingGrant
		state.expiresLocal = decision.afterExpires
	case !shouldGrant && hasGrant && !expired:
		decision.Action = ActionRevoke
		decision.pending = PhasePendingRevoke
		decision.afterExpires = state.expiresLocal
		state.phase = PhasePendingRevoke
	}
	return decision
}

// Confirm settles a decision whose submission committed: a pending grant
// becomes active, a pending revoke clears the device.
func (e *Engine) Confirm(decision Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.devices[decision.DeviceID]
	if state == nil || state.phase != decision.pending {
		return
	}
	switch decision.pending {
	case PhasePendingGrant:
		state.phase = PhaseActive
	case PhasePendingRevoke:
		state.phase = PhaseNoGrant
		state.expiresLocal = time.Time{}
	}
}

// Rollback restores the pre-decision state after a failed submission, so the
// next sample can retry the intended action.
func (e *Engine) Rollback(decision Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := e.devices[decision.DeviceID]
	if state == nil || state.phase != decision.pending {
		return
	}
	state.phase = decision.prevPhase
	state.expiresLocal = decision.prevExpires
}
