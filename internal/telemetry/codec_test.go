package telemetry

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"testing"
)

func sampleFixture() Sample {
	var device [32]byte
	device[0] = 0xAA
	device[31] = 0x01
	return Sample{
		Timestamp:    1767225600123,
		DeviceID:     device,
		FrequencyMHz: 2400,
		SNRdB:        -12,
		Latitude:     43_651_070,
		Longitude:    -79_347_015,
		Interference: 3,
		BidPrice:     big.NewInt(1_500_000),
	}
}

func TestEncodeLayoutOffsets(t *testing.T) {
	s := sampleFixture()

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) != RecordSize {
		t.Fatalf("encoded length = %d, want %d", len(data), RecordSize)
	}
	if got := binary.BigEndian.Uint64(data[0:8]); got != s.Timestamp {
		t.Fatalf("timestamp bytes = %d, want %d", got, s.Timestamp)
	}
	if !bytes.Equal(data[8:40], s.DeviceID[:]) {
		t.Fatal("device id bytes mismatch")
	}
	if got := binary.BigEndian.Uint32(data[40:44]); got != 2400 {
		t.Fatalf("frequency bytes = %d, want 2400", got)
	}
	if got := int16(binary.BigEndian.Uint16(data[44:46])); got != -12 {
		t.Fatalf("snr bytes = %d, want -12", got)
	}
	if data[54] != 3 {
		t.Fatalf("interference byte = %d, want 3", data[54])
	}
	if got := new(big.Int).SetBytes(data[55:87]); got.Cmp(s.BidPrice) != 0 {
		t.Fatalf("bid price bytes = %s, want %s", got, s.BidPrice)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	s := sampleFixture()

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Timestamp != s.Timestamp {
		t.Fatalf("timestamp = %d, want %d", decoded.Timestamp, s.Timestamp)
	}
	if decoded.DeviceID != s.DeviceID {
		t.Fatal("device id mismatch")
	}
	if decoded.SNRdB != s.SNRdB {
		t.Fatalf("snr = %d, want %d", decoded.SNRdB, s.SNRdB)
	}
	if decoded.Latitude != s.Latitude || decoded.Longitude != s.Longitude {
		t.Fatalf("coordinates = (%d,%d), want (%d,%d)", decoded.Latitude, decoded.Longitude, s.Latitude, s.Longitude)
	}
	if decoded.BidPrice.Cmp(s.BidPrice) != 0 {
		t.Fatalf("bid price = %s, want %s", decoded.BidPrice, s.BidPrice)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode(make([]byte, RecordSize-1)); err == nil {
		t.Fatal("expected length error")
	}
}

func TestEncodeRejectsInvalidSample(t *testing.T) {
	s := sampleFixture()
	s.Interference = MaxInterference + 1
	if _, err := Encode(s); err == nil {
		t.Fatal("expected interference validation error")
	}

	s = sampleFixture()
	s.BidPrice = big.NewInt(-1)
	if _, err := Encode(s); err == nil {
		t.Fatal("expected negative bid price error")
	}

	s = sampleFixture()
	s.BidPrice = nil
	if _, err := Encode(s); err == nil {
		t.Fatal("expected missing bid price error")
	}
}

func TestSchemaIDIsStable(t *testing.T) {
	first := SchemaID()
	second := SchemaID()
	if first == "" {
		t.Fatal("expected non-empty schema id")
	}
	if first != second {
		t.Fatalf("schema id not deterministic: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("schema id length = %d, want 64 hex chars", len(first))
	}
}
