// Package core exposes the in-process call contract the presentation layer
// consumes: session transitions, account management and transaction
// building/signing. It owns the wiring between the keyring, the session
// guard, the persistent store and the network client; callers never touch
// key material or credentials directly.
package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yolodolo42/walletcore/internal/chain"
	"github.com/yolodolo42/walletcore/internal/keyring"
	"github.com/yolodolo42/walletcore/internal/session"
	"github.com/yolodolo42/walletcore/internal/store"
	"github.com/yolodolo42/walletcore/internal/tx"
)

var (
	ErrNotInitialized       = errors.New("wallet not initialized")
	ErrAlreadyInitialized   = errors.New("wallet already initialized")
	ErrAccountSessionLocked = errors.New("account session locked")
)

// Config carries the service's optional tuning knobs. Zero values take
// defaults.
type Config struct {
	SessionTimeout  time.Duration
	Estimator       tx.EstimatorConfig
	DisplayDecimals int
}

// AccountStatus is an account view plus its live session state.
type AccountStatus struct {
	keyring.Info
	Unlocked bool
}

// Service binds the signing core together. All methods are safe for
// concurrent use; state transitions delegate to the guarded keyring and
// session maps.
type Service struct {
	keys   *keyring.Keyring
	guard  *session.Guard
	store  *store.Store
	chains *chain.Client
	cfg    Config
}

// NewService loads stored accounts into the keyring and registers their
// verifiers with the session guard. Everything starts locked.
func NewService(st *store.Store, chains *chain.Client, cfg Config) *Service {
	if cfg.DisplayDecimals == 0 {
		cfg.DisplayDecimals = tx.DisplayDecimals
	}

	s := &Service{
		keys:   keyring.New(),
		guard:  session.NewGuard(session.Config{Timeout: cfg.SessionTimeout}),
		store:  st,
		chains: chains,
		cfg:    cfg,
	}

	if cv, ok := st.WalletCheck(); ok {
		s.guard.SetWalletCheck(cv)
	}
	for _, acct := range st.ListAccounts() {
		s.keys.LoadStored(common.HexToAddress(acct.Address), acct.ID, acct.Name, acct.Handle)
		s.guard.RegisterAccount(acct.ID, acct.Check)
	}
	return s
}

// Initialized reports whether a master credential has been set up.
func (s *Service) Initialized() bool {
	_, ok := s.store.WalletCheck()
	return ok
}

// Initialize sets the master credential on first run.
func (s *Service) Initialize(masterCredential []byte) error {
	if s.Initialized() {
		return ErrAlreadyInitialized
	}
	cv, err := session.NewCheckValue(masterCredential)
	if err != nil {
		return err
	}
	if err := s.store.SetWalletCheck(cv); err != nil {
		return err
	}
	s.guard.SetWalletCheck(cv)
	return nil
}

// UnlockWallet opens the wallet session. No account sessions open with it.
func (s *Service) UnlockWallet(credential []byte) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	return s.guard.UnlockWallet(credential)
}

// LockWallet is the fail-safe: it closes every session and zeros all
// cached credentials and in-memory keys, from any state.
func (s *Service) LockWallet() {
	s.guard.LockWallet()
	s.keys.DeactivateAll()
}

// IsWalletUnlocked reports the wallet session state.
func (s *Service) IsWalletUnlocked() bool {
	return s.guard.IsWalletUnlocked()
}

// ImportAccount validates and imports a private key, persists its
// encrypted handle under the account password, and registers the account
// with the session guard. The new account starts with a locked session.
func (s *Service) ImportAccount(privateKeyHex, name string, password []byte) (common.Address, error) {
	if !s.guard.IsWalletUnlocked() {
		return common.Address{}, session.ErrWalletLocked
	}

	addr, err := s.keys.Import(privateKeyHex, name)
	if err != nil {
		return common.Address{}, err
	}
	return addr, s.persistNewAccount(addr, name, password)
}

// CreateAccount generates a fresh key and stores it like an import.
func (s *Service) CreateAccount(name string, password []byte) (common.Address, error) {
	if !s.guard.IsWalletUnlocked() {
		return common.Address{}, session.ErrWalletLocked
	}

	addr, err := s.keys.Generate(name)
	if err != nil {
		return common.Address{}, err
	}
	return addr, s.persistNewAccount(addr, name, password)
}

// persistNewAccount encrypts the freshly installed key under the account
// password, writes it to the store and registers the session verifier.
func (s *Service) persistNewAccount(addr common.Address, name string, password []byte) error {
	info, err := s.keys.Info(addr)
	if err != nil {
		return err
	}

	check, err := session.NewCheckValue(password)
	if err != nil {
		return err
	}
	keyHex, err := s.keys.ExportKeyHex(addr)
	if err != nil {
		return err
	}
	handle, err := store.EncryptKey([]byte(keyHex), password)
	if err != nil {
		return err
	}
	if err := s.store.PutAccount(store.StoredAccount{
		ID:      info.ID,
		Name:    name,
		Address: addr.Hex(),
		Handle:  handle,
		Check:   check,
	}); err != nil {
		// Roll the insert back rather than leave a key that will vanish
		// on restart.
		_ = s.keys.Remove(addr)
		return err
	}

	_ = s.keys.SetHandle(addr, handle)
	// A reimport replaces the password; a session opened under the old
	// one must not survive it.
	s.guard.DropAccount(info.ID)
	s.guard.RegisterAccount(info.ID, check)
	return nil
}

// RemoveAccount deletes an account everywhere: store, keyring, sessions.
// The store write goes first; if it fails nothing else is touched, so
// the account a restart would load is the account callers still see.
func (s *Service) RemoveAccount(addr common.Address) error {
	info, err := s.keys.Info(addr)
	if err != nil {
		return err
	}
	if err := s.store.RemoveAccount(addr.Hex()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := s.keys.Remove(addr); err != nil {
		return err
	}
	s.guard.DropAccount(info.ID)
	return nil
}

// UnlockAccount opens an account session and installs the decrypted key
// into the keyring if it is not already hot.
func (s *Service) UnlockAccount(addr common.Address, password []byte, remember bool) error {
	info, err := s.keys.Info(addr)
	if err != nil {
		return err
	}
	if err := s.guard.UnlockAccount(info.ID, password, remember); err != nil {
		return err
	}

	if s.keys.IsUnlocked(addr) {
		// Key still hot from a previous session; nothing to decrypt.
		return nil
	}
	handle, err := s.keys.Handle(addr)
	if err != nil {
		return err
	}
	keyHex, err := store.DecryptKey(handle, password)
	if err != nil {
		s.guard.LockAccount(info.ID)
		return session.ErrInvalidCredential
	}
	key, err := crypto.HexToECDSA(trimHexPrefix(string(keyHex)))
	for i := range keyHex {
		keyHex[i] = 0
	}
	if err != nil {
		s.guard.LockAccount(info.ID)
		return fmt.Errorf("stored key corrupt: %w", err)
	}
	if err := s.keys.ActivateKey(addr, key); err != nil {
		s.guard.LockAccount(info.ID)
		return err
	}
	return nil
}

// LockAccount closes the account's session and zeros both its remembered
// credential and its in-memory key. The encrypted handle stays, so the
// account can be unlocked again.
func (s *Service) LockAccount(addr common.Address) {
	if info, err := s.keys.Info(addr); err == nil {
		s.guard.LockAccount(info.ID)
		s.keys.Deactivate(addr)
	}
}

// TouchAccount refreshes the account's inactivity window.
func (s *Service) TouchAccount(addr common.Address) {
	if info, err := s.keys.Info(addr); err == nil {
		s.guard.TouchAccount(info.ID)
	}
}

// IsAccountUnlocked reports whether the account's session is open, with
// expiry evaluated lazily.
func (s *Service) IsAccountUnlocked(addr common.Address) bool {
	info, err := s.keys.Info(addr)
	if err != nil {
		return false
	}
	return s.guard.IsAccountUnlocked(info.ID)
}

// TimeUntilExpiry returns the remaining account-session lifetime for
// callers that want to warn before expiry.
func (s *Service) TimeUntilExpiry(addr common.Address) (time.Duration, bool) {
	info, err := s.keys.Info(addr)
	if err != nil {
		return 0, false
	}
	return s.guard.TimeUntilExpiry(info.ID)
}

// SwitchAccount changes the active account. No re-authentication happens
// here; a locked target simply cannot sign until unlocked.
func (s *Service) SwitchAccount(addr common.Address) error {
	return s.keys.SwitchActive(addr)
}

// ActiveAddress returns the active account's address, if any.
func (s *Service) ActiveAddress() (common.Address, bool) {
	return s.keys.ActiveAddress()
}

// Accounts lists every account with its session state.
func (s *Service) Accounts() []AccountStatus {
	infos := s.keys.List()
	statuses := make([]AccountStatus, 0, len(infos))
	for _, info := range infos {
		statuses = append(statuses, AccountStatus{
			Info:     info,
			Unlocked: s.guard.IsAccountUnlocked(info.ID),
		})
	}
	return statuses
}

// Lookup resolves an account id or hex address.
func (s *Service) Lookup(idOrAddress string) (common.Address, error) {
	return s.keys.Lookup(idOrAddress)
}

// ChainID returns the configured chain id for a network.
func (s *Service) ChainID(network string) (*big.Int, error) {
	return s.chains.ChainID(network)
}

// NativeBalance reads the address's native balance along with the
// network's currency symbol.
func (s *Service) NativeBalance(ctx context.Context, network string, addr common.Address) (*big.Int, string, error) {
	provider, err := s.chains.Network(network)
	if err != nil {
		return nil, "", err
	}
	balance, err := provider.BalanceAt(ctx, addr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get balance: %w", err)
	}
	cfg, err := s.chains.ChainConfig(network)
	if err != nil {
		return nil, "", err
	}
	return balance, cfg.NativeCurrency, nil
}

// BuildTransaction validates intent into an encoded request, stamping in
// the network's chain id.
func (s *Service) BuildTransaction(network string, p tx.Params) (*tx.Request, error) {
	chainID, err := s.chains.ChainID(network)
	if err != nil {
		return nil, err
	}
	p.ChainID = chainID
	return tx.Build(p)
}

// EstimateGas estimates the request against the network with the
// configured buffer and bounds. Network failure degrades to the fixed
// fallback; only an unknown network is an error.
func (s *Service) EstimateGas(ctx context.Context, network string, req *tx.Request) (tx.Estimate, error) {
	provider, err := s.chains.Network(network)
	if err != nil {
		return tx.Estimate{}, err
	}
	return tx.EstimateGas(ctx, provider, req, s.cfg.Estimator), nil
}

// BuildAndSignTransaction runs the full path: build, gate on the sender's
// account session, estimate gas if needed, fill the nonce, sign. The
// caller broadcasts separately.
func (s *Service) BuildAndSignTransaction(ctx context.Context, network string, p tx.Params) (*types.Transaction, error) {
	req, err := s.BuildTransaction(network, p)
	if err != nil {
		return nil, err
	}
	return s.SignRequest(ctx, network, req)
}

// SignRequest gates an already built request on the session guard and
// signs it.
func (s *Service) SignRequest(ctx context.Context, network string, req *tx.Request) (*types.Transaction, error) {
	if !s.guard.IsWalletUnlocked() {
		return nil, session.ErrWalletLocked
	}
	info, err := s.keys.Info(req.From)
	if err != nil {
		return nil, err
	}
	if !s.guard.IsAccountUnlocked(info.ID) {
		return nil, ErrAccountSessionLocked
	}
	s.guard.TouchAccount(info.ID)

	provider, err := s.chains.Network(network)
	if err != nil {
		return nil, err
	}

	if req.GasLimit == 0 {
		est := tx.EstimateGas(ctx, provider, req, s.cfg.Estimator)
		req.GasLimit = est.Gas
	}
	if req.Nonce == nil {
		nonce, err := provider.PendingNonceAt(ctx, req.From)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch nonce: %w", err)
		}
		req.Nonce = &nonce
	}

	txn, err := req.Transaction()
	if err != nil {
		return nil, err
	}
	return s.keys.SignTx(req.From, txn, req.ChainID)
}

// Broadcast submits a signed transaction. Errors come back verbatim and
// nothing is retried: a duplicate send of a signed transaction is worse
// than a failed one.
func (s *Service) Broadcast(ctx context.Context, network string, txn *types.Transaction) (common.Hash, error) {
	provider, err := s.chains.Network(network)
	if err != nil {
		return common.Hash{}, err
	}
	if err := provider.SendTransaction(ctx, txn); err != nil {
		return common.Hash{}, err
	}
	return txn.Hash(), nil
}

// SignMessage signs with the active account, gated on its session.
func (s *Service) SignMessage(message []byte) ([]byte, error) {
	if !s.guard.IsWalletUnlocked() {
		return nil, session.ErrWalletLocked
	}
	addr, ok := s.keys.ActiveAddress()
	if !ok {
		return nil, keyring.ErrNoActiveAccount
	}
	info, err := s.keys.Info(addr)
	if err != nil {
		return nil, err
	}
	if !s.guard.IsAccountUnlocked(info.ID) {
		return nil, ErrAccountSessionLocked
	}
	s.guard.TouchAccount(info.ID)
	return s.keys.SignMessage(message)
}

// ExportPrivateKey returns the raw key hex. Export is credential-gated:
// the caller supplies the account password, or passes nil to use the
// credential cached by an unlock with remember set.
func (s *Service) ExportPrivateKey(addr common.Address, password []byte) (string, error) {
	info, err := s.keys.Info(addr)
	if err != nil {
		return "", err
	}

	if password == nil {
		var keyHex string
		err := s.guard.UseAccountCredential(info.ID, func(credential []byte) error {
			var inner error
			keyHex, inner = s.exportWith(addr, credential)
			return inner
		})
		return keyHex, err
	}

	if err := s.guard.VerifyAccountPassword(info.ID, password); err != nil {
		return "", err
	}
	return s.exportWith(addr, password)
}

// exportWith extracts the key hex using an already verified credential,
// decrypting the stored handle when the key is not in memory. The key is
// never installed into the keyring here.
func (s *Service) exportWith(addr common.Address, credential []byte) (string, error) {
	keyHex, err := s.keys.ExportKeyHex(addr)
	if err == nil {
		return keyHex, nil
	}
	if !errors.Is(err, keyring.ErrAccountLocked) {
		return "", err
	}

	handle, err := s.keys.Handle(addr)
	if err != nil {
		return "", err
	}
	raw, err := store.DecryptKey(handle, credential)
	if err != nil {
		return "", session.ErrInvalidCredential
	}
	return string(raw), nil
}

// TokenDecimals queries a token contract's decimals, defaulting to 18 on
// failure the way most wallets do.
func (s *Service) TokenDecimals(ctx context.Context, network string, token common.Address) uint8 {
	provider, err := s.chains.Network(network)
	if err != nil {
		return 18
	}
	decimals, err := provider.TokenDecimals(ctx, token)
	if err != nil {
		return 18
	}
	return decimals
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}
