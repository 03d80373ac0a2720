package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yolodolo42/walletcore/internal/session"
)

const (
	accountsFileName = "accounts.json"
	filePerms        = 0600 // owner read/write only
)

var ErrNotFound = errors.New("not found in store")

// StoredAccount is one persisted account: address, metadata, the
// password-encrypted key handle and the password verifier. The raw key and
// the password itself never reach disk.
type StoredAccount struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Address string             `json:"address"`
	Handle  []byte             `json:"handle"`
	Check   session.CheckValue `json:"check"`
}

// Data is the on-disk layout of accounts.json.
type Data struct {
	Version     int                      `json:"version"`
	WalletCheck *session.CheckValue      `json:"wallet_check,omitempty"`
	Accounts    map[string]StoredAccount `json:"accounts"`
}

// Store persists accounts and credential verifiers under the data
// directory. Every mutation is written through immediately.
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     *Data
}

// NewStore opens (or creates) the account store in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(dataDir, accountsFileName),
		data: &Data{
			Version:  1,
			Accounts: make(map[string]StoredAccount),
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read account store: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse account store: %w", err)
	}
	if data.Accounts == nil {
		data.Accounts = make(map[string]StoredAccount)
	}
	s.data = &data
	return nil
}

// saveLocked writes the store atomically: temp file then rename, so a
// crash mid-write cannot truncate existing accounts. Callers hold s.mu.
func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account store: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, filePerms); err != nil {
		return fmt.Errorf("failed to write account store: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace account store: %w", err)
	}
	return nil
}

// SetWalletCheck persists the master-credential verifier.
func (s *Store) SetWalletCheck(cv session.CheckValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data.WalletCheck
	s.data.WalletCheck = &cv
	if err := s.saveLocked(); err != nil {
		s.data.WalletCheck = prev
		return err
	}
	return nil
}

// WalletCheck returns the master-credential verifier, if one is set.
func (s *Store) WalletCheck() (session.CheckValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.WalletCheck == nil {
		return session.CheckValue{}, false
	}
	return *s.data.WalletCheck, true
}

// PutAccount inserts or replaces a stored account, keyed by address. A
// failed write rolls the in-memory map back, so memory never disagrees
// with what a restart would load.
func (s *Store) PutAccount(acct StoredAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data.Accounts[acct.Address]
	s.data.Accounts[acct.Address] = acct
	if err := s.saveLocked(); err != nil {
		if had {
			s.data.Accounts[acct.Address] = prev
		} else {
			delete(s.data.Accounts, acct.Address)
		}
		return err
	}
	return nil
}

// GetAccount looks up a stored account by address.
func (s *Store) GetAccount(address string) (StoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.data.Accounts[address]
	if !ok {
		return StoredAccount{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return acct, nil
}

// RemoveAccount deletes a stored account. A failed write restores the
// entry; the file would still hold it after a restart either way.
func (s *Store) RemoveAccount(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.data.Accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	delete(s.data.Accounts, address)
	if err := s.saveLocked(); err != nil {
		s.data.Accounts[address] = acct
		return err
	}
	return nil
}

// ListAccounts returns every stored account.
func (s *Store) ListAccounts() []StoredAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]StoredAccount, 0, len(s.data.Accounts))
	for _, acct := range s.data.Accounts {
		accounts = append(accounts, acct)
	}
	return accounts
}
