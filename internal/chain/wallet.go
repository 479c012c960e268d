package chain

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// addressLength is the byte length of a derived account address.
const addressLength = 20

// Wallet holds the signing key for one ledger account.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string
}

// NewWalletFromSeed builds a wallet from a 32-byte hex seed.
func NewWalletFromSeed(seedHex string) (*Wallet, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("decode wallet seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Wallet{
		priv:    priv,
		address: AddressFromPublicKey(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// Address returns the wallet's account address.
func (w *Wallet) Address() string {
	return w.address
}

// SignTx fills in the sender, public key, and signature fields of tx.
func (w *Wallet) SignTx(tx *Tx) {
	tx.Sender = w.address
	tx.PubKey = hex.EncodeToString(w.priv.Public().(ed25519.PublicKey))
	digest := tx.Hash()
	tx.Signature = hex.EncodeToString(ed25519.Sign(w.priv, digest[:]))
}

// AddressFromPublicKey derives the account address for an ed25519 public key.
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	sum := blake3.Sum256(pub)
	return hex.EncodeToString(sum[:addressLength])
}
