package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredential is deliberately generic: callers learn that
	// authentication failed, not which part of the check was wrong.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrUnknownAccount    = errors.New("unknown account")
)

// DefaultTimeout is the account-session inactivity window when none is
// configured.
const DefaultTimeout = 30 * time.Minute

// Config tunes the guard.
type Config struct {
	// Timeout is the default per-account inactivity window. Zero means
	// DefaultTimeout.
	Timeout time.Duration
}

// accountEntry is a registered account: its password verifier and its
// inactivity window.
type accountEntry struct {
	check   CheckValue
	timeout time.Duration
}

// accountSession exists only while an account is unlocked; presence in the
// sessions map is the unlocked state, so "unlocked while wallet locked"
// cannot be represented.
type accountSession struct {
	credential   *Secret // nil unless remember was set
	unlockedAt   time.Time
	lastActivity time.Time
	timeout      time.Duration
}

// Guard is the two-tier lock state machine: one wallet-level session gating
// all key use, and independent per-account sessions on top of it.
type Guard struct {
	// One mutex covers the whole state machine. Transitions touch the
	// wallet session and account sessions together (LockWallet must wipe
	// both atomically) and none of them block.
	mu sync.Mutex

	defaultTimeout time.Duration

	walletCheck CheckValue
	accounts    map[string]*accountEntry

	// Wallet session. master non-nil iff unlocked.
	master     *Secret
	sessionID  string
	unlockedAt time.Time

	sessions map[string]*accountSession

	// now is a seam for expiry tests.
	now func() time.Time
}

// NewGuard creates a locked guard with no registered accounts.
func NewGuard(cfg Config) *Guard {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{
		defaultTimeout: timeout,
		accounts:       make(map[string]*accountEntry),
		sessions:       make(map[string]*accountSession),
		now:            time.Now,
	}
}

// SetWalletCheck installs the master-credential verifier.
func (g *Guard) SetWalletCheck(cv CheckValue) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.walletCheck = cv
}

// RegisterAccount installs an account's password verifier with the default
// inactivity window.
func (g *Guard) RegisterAccount(id string, cv CheckValue) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[id] = &accountEntry{check: cv, timeout: g.defaultTimeout}
}

// SetAccountTimeout overrides one account's inactivity window. Takes effect
// on the next unlock.
func (g *Guard) SetAccountTimeout(id string, timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if timeout <= 0 {
		timeout = g.defaultTimeout
	}
	entry.timeout = timeout
	return nil
}

// DropAccount forgets an account's verifier and any live session.
func (g *Guard) DropAccount(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.credential.Wipe()
		delete(g.sessions, id)
	}
	delete(g.accounts, id)
}

// UnlockWallet validates the master credential against the stored check
// value and opens the wallet session with zero unlocked accounts. A failed
// attempt leaves prior state untouched.
func (g *Guard) UnlockWallet(credential []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.walletCheck.Verify(credential) {
		return ErrInvalidCredential
	}

	g.wipeLocked()
	g.master = NewSecret(credential)
	g.sessionID = uuid.NewString()
	g.unlockedAt = g.now()
	return nil
}

// LockWallet discards the master credential and every account session. It
// is the fail-safe transition: valid from any state, never errors.
func (g *Guard) LockWallet() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wipeLocked()
}

func (g *Guard) wipeLocked() {
	g.master.Wipe()
	g.master = nil
	g.sessionID = ""
	g.unlockedAt = time.Time{}
	for id, s := range g.sessions {
		s.credential.Wipe()
		delete(g.sessions, id)
	}
}

// IsWalletUnlocked reports the wallet session state.
func (g *Guard) IsWalletUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.master != nil
}

// SessionID returns the wallet session id while unlocked.
func (g *Guard) SessionID() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessionID, g.master != nil
}

// UnlockedAt reports when the wallet session opened.
func (g *Guard) UnlockedAt() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlockedAt, g.master != nil
}

// UnlockAccount validates the account password and opens its session.
// Requires the wallet session to be open first. The password is retained
// for the session only when remember is set; either way the session
// timestamps start now.
func (g *Guard) UnlockAccount(id string, password []byte, remember bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.master == nil {
		return ErrWalletLocked
	}
	entry, ok := g.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if !entry.check.Verify(password) {
		return ErrInvalidCredential
	}

	if old, ok := g.sessions[id]; ok {
		old.credential.Wipe()
	}
	s := &accountSession{
		unlockedAt:   g.now(),
		lastActivity: g.now(),
		timeout:      entry.timeout,
	}
	if remember {
		s.credential = NewSecret(password)
	}
	g.sessions[id] = s
	return nil
}

// VerifyAccountPassword checks a password against the account's verifier
// without opening a session. Used for credential-gated one-off operations
// like key export.
func (g *Guard) VerifyAccountPassword(id string, password []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.master == nil {
		return ErrWalletLocked
	}
	entry, ok := g.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if !entry.check.Verify(password) {
		return ErrInvalidCredential
	}
	return nil
}

// LockAccount closes one account session, leaving the wallet session open.
func (g *Guard) LockAccount(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.credential.Wipe()
		delete(g.sessions, id)
	}
}

// TouchAccount refreshes the account's activity timestamp. It never
// re-authenticates; touching an expired or locked session is a no-op.
func (g *Guard) TouchAccount(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.liveSessionLocked(id); s != nil {
		s.lastActivity = g.now()
	}
}

// IsAccountUnlocked reports whether the account session is open and not
// expired. Expiry is evaluated here, lazily; no background timer exists.
func (g *Guard) IsAccountUnlocked(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liveSessionLocked(id) != nil
}

// TimeUntilExpiry returns how long the account session has left. A caller
// may poll this to warn the user; enforcement never depends on it.
func (g *Guard) TimeUntilExpiry(id string) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.liveSessionLocked(id)
	if s == nil {
		return 0, false
	}
	return s.timeout - g.now().Sub(s.lastActivity), true
}

// UseAccountCredential runs fn against the remembered account password.
// Fails if the session is closed, expired, or was opened without remember.
func (g *Guard) UseAccountCredential(id string, fn func([]byte) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.liveSessionLocked(id)
	if s == nil {
		return ErrWalletLocked
	}
	if s.credential == nil {
		return ErrInvalidCredential
	}
	s.lastActivity = g.now()
	return s.credential.Use(fn)
}

// UseMasterCredential runs fn against the cached master credential.
func (g *Guard) UseMasterCredential(fn func([]byte) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.master == nil {
		return ErrWalletLocked
	}
	return g.master.Use(fn)
}

// liveSessionLocked returns the open session for id, reaping it first if
// the inactivity window has passed. Callers hold g.mu.
func (g *Guard) liveSessionLocked(id string) *accountSession {
	if g.master == nil {
		return nil
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil
	}
	if g.now().Sub(s.lastActivity) > s.timeout {
		s.credential.Wipe()
		delete(g.sessions, id)
		return nil
	}
	return s
}
