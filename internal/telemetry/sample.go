// Package telemetry defines the device signal sample and its wire encoding.
//
// Samples travel over the node's record stream in a fixed binary layout so
// that every producer and consumer agrees on byte offsets. The layout is part
// of the registered schema and must not change without a new schema id.
package telemetry

import (
	"fmt"
	"math/big"
)

// MaxInterference is the highest interference level a device can report.
const MaxInterference = 5

// Sample is one signal-quality measurement reported by a device.
// Samples are immutable once published.
type Sample struct {
	Timestamp    uint64 // epoch milliseconds
	DeviceID     [32]byte
	FrequencyMHz uint32
	SNRdB        int16
	Latitude     int32 // degrees ×1e6
	Longitude    int32 // degrees ×1e6
	Interference uint8 // 0..MaxInterference
	BidPrice     *big.Int
}

// Validate checks the sample against the schema's field constraints.
func (s Sample) Validate() error {
	if s.Interference > MaxInterference {
		return fmt.Errorf("interference level %d exceeds maximum %d", s.Interference, MaxInterference)
	}
	if s.BidPrice == nil {
		return fmt.Errorf("bid price is required")
	}
	if s.BidPrice.Sign() < 0 {
		return fmt.Errorf("bid price must not be negative")
	}
	if s.BidPrice.BitLen() > 256 {
		return fmt.Errorf("bid price exceeds 256 bits")
	}
	return nil
}
