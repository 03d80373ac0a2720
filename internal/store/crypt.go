package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt is deliberately generic: a wrong password and a corrupted blob
// are indistinguishable to the caller.
var ErrDecrypt = errors.New("decryption failed")

// scrypt parameters for at-rest key encryption. Heavier than the session
// check values since this guards the key material itself and only runs on
// explicit unlock/export.
const (
	cryptScryptN = 1 << 17
	cryptScryptR = 8
	cryptScryptP = 1
	cryptKeyLen  = 32
	cryptSaltLen = 32
	nonceLen     = 12
)

// EncryptKey seals key bytes under a password. The blob layout is
// salt || nonce || ciphertext; the AES key is scrypt-derived per blob.
func EncryptKey(plaintext, password []byte) ([]byte, error) {
	salt := make([]byte, cryptSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, cryptSaltLen+nonceLen+len(plaintext)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, plaintext, nil)
	return blob, nil
}

// DecryptKey opens a blob produced by EncryptKey.
func DecryptKey(blob, password []byte) ([]byte, error) {
	if len(blob) < cryptSaltLen+nonceLen {
		return nil, ErrDecrypt
	}
	salt := blob[:cryptSaltLen]
	nonce := blob[cryptSaltLen : cryptSaltLen+nonceLen]
	ciphertext := blob[cryptSaltLen+nonceLen:]

	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newAEAD(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, cryptScryptN, cryptScryptR, cryptScryptP, cryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
