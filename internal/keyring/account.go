package keyring

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
)

// Account is a signing identity held by the Keyring. The address is derived
// from the key at import time and never recomputed.
type Account struct {
	ID      string
	Name    string
	Address common.Address

	// key is the in-memory signing material. nil while the account is
	// locked; only the encrypted handle is held then.
	key *ecdsa.PrivateKey

	// handle is the opaque encrypted key blob from the persistent store,
	// attached at load or once a fresh import has been persisted.
	handle []byte
}

// Info is the read-only view of an account handed to callers. It never
// carries key material.
type Info struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// Unlocked reports whether signing material is present in memory.
func (a *Account) Unlocked() bool {
	return a.key != nil
}

// zeroKey overwrites the scalar before dropping the reference so key bytes
// don't linger in memory for dumps or core files to pick up.
func zeroKey(k *ecdsa.PrivateKey) {
	if k != nil {
		k.D.SetInt64(0)
	}
}
