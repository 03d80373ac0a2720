package keyring

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrNoActiveAccount = errors.New("no active account")
	ErrInvalidKey      = errors.New("invalid private key")
)

// Keyring is the in-memory store of signing identities. One account may be
// marked active; signing calls that name no address use it.
type Keyring struct {
	// mu protects accounts and the active pointer together. Signing must
	// not race with Remove or with lock paths that zero key material, and
	// the active pointer is only meaningful relative to the map contents.
	mu        sync.RWMutex
	accounts  map[common.Address]*Account
	active    common.Address
	hasActive bool
}

// New creates an empty keyring.
func New() *Keyring {
	return &Keyring{
		accounts: make(map[common.Address]*Account),
	}
}

// Import parses a hex private key (with or without 0x prefix), derives its
// address and inserts the account. Reimporting an existing address
// overwrites it but keeps its id, so nothing registered against the old
// id goes stale. The first imported account becomes active.
func (kr *Keyring) Import(privateKeyHex, name string) (common.Address, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)

	kr.mu.Lock()
	defer kr.mu.Unlock()

	id := uuid.NewString()
	if old, ok := kr.accounts[addr]; ok {
		zeroKey(old.key)
		id = old.ID
	}
	kr.accounts[addr] = &Account{
		ID:      id,
		Name:    name,
		Address: addr,
		key:     key,
	}
	if !kr.hasActive {
		kr.active = addr
		kr.hasActive = true
	}
	return addr, nil
}

// Generate creates a fresh random key and inserts it as a new account,
// with the same activation rules as Import.
func (kr *Keyring) Generate(name string) (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("key generation failed: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	kr.mu.Lock()
	defer kr.mu.Unlock()

	kr.accounts[addr] = &Account{
		ID:      uuid.NewString(),
		Name:    name,
		Address: addr,
		key:     key,
	}
	if !kr.hasActive {
		kr.active = addr
		kr.hasActive = true
	}
	return addr, nil
}

// LoadStored inserts an account known only by its address and encrypted key
// handle, as supplied by the persistent store at startup. The account stays
// locked until ActivateKey installs its decrypted key.
func (kr *Keyring) LoadStored(addr common.Address, id, name string, handle []byte) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if old, ok := kr.accounts[addr]; ok {
		zeroKey(old.key)
	}
	kr.accounts[addr] = &Account{
		ID:      id,
		Name:    name,
		Address: addr,
		handle:  append([]byte(nil), handle...),
	}
	if !kr.hasActive {
		kr.active = addr
		kr.hasActive = true
	}
}

// SetHandle attaches an encrypted key blob to an existing account, so a
// freshly imported key can be re-unlocked after its in-memory copy is
// wiped.
func (kr *Keyring) SetHandle(addr common.Address, handle []byte) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return ErrAccountNotFound
	}
	acct.handle = append([]byte(nil), handle...)
	return nil
}

// IsUnlocked reports whether the account's signing key is in memory.
func (kr *Keyring) IsUnlocked(addr common.Address) bool {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	acct, ok := kr.accounts[addr]
	return ok && acct.key != nil
}

// Handle returns the encrypted key blob for a stored account.
func (kr *Keyring) Handle(addr common.Address) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return append([]byte(nil), acct.handle...), nil
}

// ActivateKey installs decrypted signing material for a stored account. The
// key's derived address must match the account it unlocks.
func (kr *Keyring) ActivateKey(addr common.Address, key *ecdsa.PrivateKey) error {
	if derived := crypto.PubkeyToAddress(key.PublicKey); derived != addr {
		zeroKey(key)
		return fmt.Errorf("%w: key does not match address %s", ErrInvalidKey, addr.Hex())
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		zeroKey(key)
		return ErrAccountNotFound
	}
	zeroKey(acct.key)
	acct.key = key
	return nil
}

// Deactivate zeros one account's in-memory key. The account itself remains
// listed; only its signing material is gone.
func (kr *Keyring) Deactivate(addr common.Address) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if acct, ok := kr.accounts[addr]; ok {
		zeroKey(acct.key)
		acct.key = nil
	}
}

// DeactivateAll zeros every in-memory key. Called on wallet lock.
func (kr *Keyring) DeactivateAll() {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	for _, acct := range kr.accounts {
		zeroKey(acct.key)
		acct.key = nil
	}
}

// ActiveAddress returns the active account's address, if any.
func (kr *Keyring) ActiveAddress() (common.Address, bool) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.active, kr.hasActive
}

// SwitchActive points the active marker at another present account.
func (kr *Keyring) SwitchActive(addr common.Address) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if _, ok := kr.accounts[addr]; !ok {
		return ErrAccountNotFound
	}
	kr.active = addr
	kr.hasActive = true
	return nil
}

// Remove deletes an account and zeros its key. If the removed account was
// active, the lowest remaining address (byte order) becomes active so the
// fallback is deterministic across runs; with no accounts left the active
// marker clears.
func (kr *Keyring) Remove(addr common.Address) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return ErrAccountNotFound
	}
	zeroKey(acct.key)
	acct.key = nil
	delete(kr.accounts, addr)

	if kr.hasActive && kr.active == addr {
		kr.hasActive = false
		kr.active = common.Address{}
		for a := range kr.accounts {
			if !kr.hasActive || bytes.Compare(a.Bytes(), kr.active.Bytes()) < 0 {
				kr.active = a
				kr.hasActive = true
			}
		}
	}
	return nil
}

// Contains reports whether an account with the address exists.
func (kr *Keyring) Contains(addr common.Address) bool {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	_, ok := kr.accounts[addr]
	return ok
}

// Count returns the number of accounts.
func (kr *Keyring) Count() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return len(kr.accounts)
}

// Lookup resolves an account id or address to its address.
func (kr *Keyring) Lookup(idOrAddress string) (common.Address, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if common.IsHexAddress(idOrAddress) {
		addr := common.HexToAddress(idOrAddress)
		if _, ok := kr.accounts[addr]; ok {
			return addr, nil
		}
		return common.Address{}, ErrAccountNotFound
	}
	for addr, acct := range kr.accounts {
		if acct.ID == idOrAddress {
			return addr, nil
		}
	}
	return common.Address{}, ErrAccountNotFound
}

// Info returns the read-only view of one account.
func (kr *Keyring) Info(addr common.Address) (Info, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return Info{}, ErrAccountNotFound
	}
	return Info{
		ID:      acct.ID,
		Name:    acct.Name,
		Address: addr.Hex(),
		Active:  kr.hasActive && addr == kr.active,
	}, nil
}

// List returns read-only account views sorted by address.
func (kr *Keyring) List() []Info {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	infos := make([]Info, 0, len(kr.accounts))
	for addr, acct := range kr.accounts {
		infos = append(infos, Info{
			ID:      acct.ID,
			Name:    acct.Name,
			Address: addr.Hex(),
			Active:  kr.hasActive && addr == kr.active,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Address < infos[j].Address
	})
	return infos
}

// SignMessage signs a message with the active account using EIP-191
// personal sign.
func (kr *Keyring) SignMessage(message []byte) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	if !kr.hasActive {
		return nil, ErrNoActiveAccount
	}
	return kr.signMessageLocked(kr.active, message)
}

// SignMessageWith signs a message with a specific account, bypassing the
// active marker.
func (kr *Keyring) SignMessageWith(addr common.Address, message []byte) ([]byte, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.signMessageLocked(addr, message)
}

func (kr *Keyring) signMessageLocked(addr common.Address, message []byte) ([]byte, error) {
	acct, ok := kr.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.key == nil {
		return nil, ErrAccountLocked
	}

	// The EIP-191 prefix keeps signed messages from doubling as raw
	// transaction payloads.
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	hash := crypto.Keccak256([]byte(prefix), message)

	sig, err := crypto.Sign(hash, acct.key)
	if err != nil {
		return nil, err
	}

	// ecrecover expects V in {27,28}, crypto.Sign yields {0,1}.
	sig[64] += 27

	return sig, nil
}

// SignTx signs a transaction with the named account for the given chain.
func (kr *Keyring) SignTx(addr common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.key == nil {
		return nil, ErrAccountLocked
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, acct.key)
}

// ExportKeyHex returns the raw private key as a 0x-prefixed hex string.
// Callers must gate this behind credential checks; the keyring itself only
// requires the key to be unlocked.
func (kr *Keyring) ExportKeyHex(addr common.Address) (string, error) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	acct, ok := kr.accounts[addr]
	if !ok {
		return "", ErrAccountNotFound
	}
	if acct.key == nil {
		return "", ErrAccountLocked
	}
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(acct.key)), nil
}
