// Package domain models the simulated device fleet: per-device SNR random
// walks, interference, and bid pricing.
package domain

import (
	"encoding/binary"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/Shreshtthh/EtherSignal/internal/telemetry"
)

// SNR walk bounds in dB. The walk is centered near typical grant thresholds
// so devices keep crossing in and out of grant territory.
const (
	minSNR      = -5
	maxSNR      = 30
	maxSNRStep  = 4
	startSNRLow = 5
	startSNRTop = 20
)

// Bid tiers in the smallest currency unit, keyed off signal quality. A
// device with a strong signal bids more for its slot.
var (
	bidLow  = big.NewInt(1_000_000)
	bidMid  = big.NewInt(2_000_000)
	bidHigh = big.NewInt(5_000_000)
)

// Device is one simulated transmitter.
type Device struct {
	ID       [32]byte
	Lat, Lon int32
	snr      int16
}

// Fleet holds the simulated devices and advances their signal state each
// tick. The random source is injected so tests run deterministically.
type Fleet struct {
	devices []*Device
	rng     *rand.Rand
}

// NewFleet creates count devices with deterministic ids derived from their
// ordinal, spread around a city-sized bounding box.
func NewFleet(count int, rng *rand.Rand) *Fleet {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	fleet := &Fleet{rng: rng}
	for i := 0; i < count; i++ {
		device := &Device{
			// Downtown-ish coordinates with per-device jitter.
			Lat: 43_650_000 + int32(rng.IntN(200_000)) - 100_000,
			Lon: -79_380_000 + int32(rng.IntN(200_000)) - 100_000,
			snr: int16(startSNRLow + rng.IntN(startSNRTop-startSNRLow+1)),
		}
		binary.BigEndian.PutUint64(device.ID[24:], uint64(i+1))
		fleet.devices = append(fleet.devices, device)
	}
	return fleet
}

// Size returns the number of simulated devices.
func (f *Fleet) Size() int {
	return len(f.devices)
}

// Step advances every device's signal walk one tick and returns the samples
// to publish, one per device, in stable device order.
func (f *Fleet) Step(now time.Time) []telemetry.Sample {
	samples := make([]telemetry.Sample, 0, len(f.devices))
	for _, device := range f.devices {
		device.snr = clampSNR(device.snr + int16(f.rng.IntN(2*maxSNRStep+1)) - maxSNRStep)
		samples = append(samples, telemetry.Sample{
			Timestamp:    uint64(now.UnixMilli()),
			DeviceID:     device.ID,
			FrequencyMHz: 2400,
			SNRdB:        device.snr,
			Latitude:     device.Lat,
			Longitude:    device.Lon,
			Interference: uint8(f.rng.IntN(telemetry.MaxInterference + 1)),
			BidPrice:     bidForSNR(device.snr),
		})
	}
	return samples
}

func clampSNR(snr int16) int16 {
	if snr < minSNR {
		return minSNR
	}
	if snr > maxSNR {
		return maxSNR
	}
	return snr
}

// bidForSNR maps signal quality to one of three fixed bid tiers.
func bidForSNR(snr int16) *big.Int {
	switch {
	case snr >= 20:
		return new(big.Int).Set(bidHigh)
	case snr >= 10:
		return new(big.Int).Set(bidMid)
	default:
		return new(big.Int).Set(bidLow)
	}
}
