// Package poll consumes the telemetry stream log: every published record is
// delivered downstream exactly once, in log order, driven by timer ticks.
package poll

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Fetcher reads the stream log. The chain client satisfies it.
type Fetcher interface {
	RecordCount(ctx context.Context, schemaID string) (uint64, error)
	RecordAt(ctx context.Context, schemaID string, index uint64) ([]byte, error)
}

// Handler receives one record. Dispatch is in-process and must not fail;
// a handler that cannot use a record (bad decode, unknown device) logs and
// drops it rather than stalling the stream.
type Handler func(ctx context.Context, index uint64, record []byte)

// Backoff bounds for failed fetches. Retries are unlimited; the stream is
// the provider's only input, so it never gives up, it just slows down.
const (
	backoffInitial = 500 * time.Millisecond
	backoffMax     = 30 * time.Second
)

// Poller walks a stream with a single forward-only cursor. A fetch failure
// freezes the cursor at the failed index and holds off polling for an
// exponentially growing interval; a success resets the backoff.
type Poller struct {
	fetcher  Fetcher
	schemaID string
	handle   Handler
	clock    func() time.Time

	cursor    int64 // last dispatched index, -1 before the first record
	retry     *backoff.ExponentialBackOff
	holdUntil time.Time
}

// New builds a poller starting before the first record. A nil clock defaults
// to time.Now.
func New(fetcher Fetcher, schemaID string, handle Handler, clock func() time.Time) *Poller {
	if clock == nil {
		clock = time.Now
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = backoffInitial
	retry.MaxInterval = backoffMax
	return &Poller{
		fetcher:  fetcher,
		schemaID: schemaID,
		handle:   handle,
		clock:    clock,
		cursor:   -1,
		retry:    retry,
	}
}

// Cursor returns the last dispatched record index, -1 when none.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

// Run ticks the poller until the context is canceled. Ticks are injected so
// tests can drive the schedule deterministically.
func (p *Poller) Run(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			p.Tick(ctx)
		}
	}
}

// Tick performs one catch-up pass: read the total count, then fetch and
// dispatch every record after the cursor. The cursor advances only after a
// record is dispatched, so no index is skipped or replayed.
func (p *Poller) Tick(ctx context.Context) {
	if p.clock().Before(p.holdUntil) {
		return
	}

	count, err := p.fetcher.RecordCount(ctx, p.schemaID)
	if err != nil {
		p.backOff("count", err)
		return
	}

	for index := p.cursor + 1; index < int64(count); index++ {
		record, err := p.fetcher.RecordAt(ctx, p.schemaID, uint64(index))
		if err != nil {
			p.backOff("fetch", err)
			return
		}
		p.handle(ctx, uint64(index), record)
		p.cursor = index
	}
	p.retry.Reset()
}

func (p *Poller) backOff(op string, err error) {
	delay := p.retry.NextBackOff()
	p.holdUntil = p.clock().Add(delay)
	log.Printf("poll %s at index %d failed, holding %s: %v", op, p.cursor+1, delay, err)
}
