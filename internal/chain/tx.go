// Package chain defines the signed transaction envelope the ledger node
// accepts, the wallet that produces it, and the HTTP client used by the
// provider and simulator processes to talk to a node.
package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/zeebo/blake3"

	platformerrors "github.com/Shreshtthh/EtherSignal/internal/platform/errors"
)

// Call names accepted by the spectrum-access contract.
const (
	CallGrantAccess       = "grant_access"
	CallRevokeAccess      = "revoke_access"
	CallWithdraw          = "withdraw"
	CallEmergencyWithdraw = "emergency_withdraw"
)

const signingDomain = "ethersignal.tx.v1"

// Tx is one signed ledger transaction. The node rejects any transaction
// whose signature does not cover every semantic field, so a relayed
// transaction cannot be altered in flight.
type Tx struct {
	Sender    string `json:"sender"`
	PubKey    string `json:"pubKey"`
	Nonce     uint64 `json:"nonce"`
	Call      string `json:"call"`
	DeviceID  string `json:"deviceId,omitempty"`
	Frequency uint32 `json:"frequencyMHz,omitempty"`
	Duration  uint32 `json:"durationSeconds,omitempty"`
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

// Receipt reports the outcome of a committed transaction.
type Receipt struct {
	TxID   string `json:"txId"`
	Status string `json:"status"`
}

// SigningBytes returns the canonical byte string covered by the signature.
func (tx Tx) SigningBytes() []byte {
	payload := fmt.Sprintf("%s|%s|%d|%s|%s|%d|%d|%s",
		signingDomain, tx.Sender, tx.Nonce, tx.Call, tx.DeviceID, tx.Frequency, tx.Duration, tx.Value)
	return []byte(payload)
}

// Hash returns the blake3 digest of the signing bytes.
func (tx Tx) Hash() [32]byte {
	return blake3.Sum256(tx.SigningBytes())
}

// ID returns the transaction id, the hex-encoded hash.
func (tx Tx) ID() string {
	sum := tx.Hash()
	return hex.EncodeToString(sum[:])
}

// Verify checks the transaction signature and that the sender address is
// derived from the embedded public key.
func Verify(tx Tx) error {
	pub, err := hex.DecodeString(tx.PubKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return platformerrors.New(platformerrors.CodeBadSignature, "malformed public key")
	}
	if AddressFromPublicKey(pub) != strings.ToLower(tx.Sender) {
		return platformerrors.New(platformerrors.CodeBadSignature, "sender does not match public key")
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return platformerrors.New(platformerrors.CodeBadSignature, "malformed signature")
	}
	digest := tx.Hash()
	if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
		return platformerrors.New(platformerrors.CodeBadSignature, "signature verification failed")
	}
	return nil
}

// ParseValue parses the transaction value into a non-negative big integer.
func ParseValue(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid transaction value %q", value)
	}
	return amount, nil
}

// EncodeDeviceID renders a device id as lowercase hex for wire use.
func EncodeDeviceID(deviceID [32]byte) string {
	return hex.EncodeToString(deviceID[:])
}

// DecodeDeviceID parses a 32-byte hex device id.
func DecodeDeviceID(value string) ([32]byte, error) {
	var deviceID [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return deviceID, fmt.Errorf("decode device id: %w", err)
	}
	if len(raw) != len(deviceID) {
		return deviceID, fmt.Errorf("device id is %d bytes, want %d", len(raw), len(deviceID))
	}
	copy(deviceID[:], raw)
	return deviceID, nil
}
