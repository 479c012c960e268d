package telemetry

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// RecordSize is the exact byte length of one encoded sample.
//
// Layout, all integers big-endian:
//
//	offset  size  field
//	0       8     timestamp (uint64, epoch ms)
//	8       32    deviceId
//	40      4     frequency (uint32, MHz)
//	44      2     snr (int16, dB)
//	46      4     latitude (int32, degrees ×1e6)
//	50      4     longitude (int32, degrees ×1e6)
//	54      1     interferenceLevel (uint8)
//	55      32    bidPrice (uint256)
const RecordSize = 87

// Encode serializes the sample into the fixed record layout.
func Encode(s Sample) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	buf := make([]byte, RecordSize)
	binary.BigEndian.PutUint64(buf[0:8], s.Timestamp)
	copy(buf[8:40], s.DeviceID[:])
	binary.BigEndian.PutUint32(buf[40:44], s.FrequencyMHz)
	binary.BigEndian.PutUint16(buf[44:46], uint16(s.SNRdB))
	binary.BigEndian.PutUint32(buf[46:50], uint32(s.Latitude))
	binary.BigEndian.PutUint32(buf[50:54], uint32(s.Longitude))
	buf[54] = s.Interference
	s.BidPrice.FillBytes(buf[55:87])
	return buf, nil
}

// Decode parses a fixed-layout record back into a sample.
func Decode(data []byte) (Sample, error) {
	if len(data) != RecordSize {
		return Sample{}, fmt.Errorf("decode sample: record is %d bytes, want %d", len(data), RecordSize)
	}
	var s Sample
	s.Timestamp = binary.BigEndian.Uint64(data[0:8])
	copy(s.DeviceID[:], data[8:40])
	s.FrequencyMHz = binary.BigEndian.Uint32(data[40:44])
	s.SNRdB = int16(binary.BigEndian.Uint16(data[44:46]))
	s.Latitude = int32(binary.BigEndian.Uint32(data[46:50]))
	s.Longitude = int32(binary.BigEndian.Uint32(data[50:54]))
	s.Interference = data[54]
	s.BidPrice = new(big.Int).SetBytes(data[55:87])
	if err := s.Validate(); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	return s, nil
}
