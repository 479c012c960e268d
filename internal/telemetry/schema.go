package telemetry

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// SchemaName identifies the signal sample stream on the node.
const SchemaName = "ethersignal.signal-sample"

// Layout is the canonical field layout registered for the sample schema.
// The schema id is derived from this string, so producers and consumers that
// disagree on the layout cannot accidentally share a stream.
const Layout = "timestamp:uint64,deviceId:bytes32,frequency:uint32,snr:int16,latitude:int32,longitude:int32,interferenceLevel:uint8,bidPrice:uint256"

// SchemaID returns the deterministic id for the sample schema.
func SchemaID() string {
	sum := blake3.Sum256([]byte(SchemaName + "|" + Layout))
	return hex.EncodeToString(sum[:])
}
