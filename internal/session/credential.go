package session

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for credential check values. Verification happens on
// every unlock, so N is lower than the at-rest encryption parameters; the
// check value never leaves the local store.
const (
	checkScryptN = 1 << 15
	checkScryptR = 8
	checkScryptP = 1
	checkKeyLen  = 32
	checkSaltLen = 16
)

// CheckValue is a credential-derived verifier. It can confirm that a
// presented credential matches the original without storing the credential.
type CheckValue struct {
	Salt []byte `json:"salt"`
	Hash []byte `json:"hash"`
}

// NewCheckValue derives a verifier for the credential.
func NewCheckValue(credential []byte) (CheckValue, error) {
	salt := make([]byte, checkSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return CheckValue{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := scrypt.Key(credential, salt, checkScryptN, checkScryptR, checkScryptP, checkKeyLen)
	if err != nil {
		return CheckValue{}, fmt.Errorf("failed to derive check value: %w", err)
	}
	return CheckValue{Salt: salt, Hash: hash}, nil
}

// Verify reports whether the credential matches the stored verifier.
func (cv CheckValue) Verify(credential []byte) bool {
	if len(cv.Salt) == 0 || len(cv.Hash) == 0 {
		return false
	}
	hash, err := scrypt.Key(credential, cv.Salt, checkScryptN, checkScryptR, checkScryptP, checkKeyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(hash, cv.Hash) == 1
}

// Secret holds credential bytes that must not linger after lock. It is
// wiped in place, never copied out; access goes through Use.
type Secret struct {
	b []byte
}

// NewSecret copies the credential into a wipeable buffer.
func NewSecret(credential []byte) *Secret {
	return &Secret{b: append([]byte(nil), credential...)}
}

// Use runs fn against the secret bytes. fn must not retain the slice.
func (s *Secret) Use(fn func([]byte) error) error {
	if s == nil || s.b == nil {
		return ErrWalletLocked
	}
	return fn(s.b)
}

// Wipe overwrites the backing bytes and drops them.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}
