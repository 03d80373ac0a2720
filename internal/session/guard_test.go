package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, timeout time.Duration) *Guard {
	t.Helper()
	g := NewGuard(Config{Timeout: timeout})
	cv, err := NewCheckValue([]byte("master-credential"))
	require.NoError(t, err)
	g.SetWalletCheck(cv)
	return g
}

func registerTestAccount(t *testing.T, g *Guard, id, password string) {
	t.Helper()
	cv, err := NewCheckValue([]byte(password))
	require.NoError(t, err)
	g.RegisterAccount(id, cv)
}

func TestGuard_UnlockWallet(t *testing.T) {
	t.Run("correct credential unlocks", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		assert.True(t, g.IsWalletUnlocked())

		id, ok := g.SessionID()
		require.True(t, ok)
		assert.NotEmpty(t, id)
	})

	t.Run("wrong credential is generic and leaves state untouched", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		err := g.UnlockWallet([]byte("wrong"))
		assert.ErrorIs(t, err, ErrInvalidCredential)
		assert.False(t, g.IsWalletUnlocked())
	})

	t.Run("unlock starts with zero account sessions", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		assert.False(t, g.IsAccountUnlocked("acct-1"))
	})

	t.Run("no check value configured refuses unlock", func(t *testing.T) {
		g := NewGuard(Config{})
		err := g.UnlockWallet([]byte("anything"))
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestGuard_LockWallet(t *testing.T) {
	t.Run("lock from any state never errors", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		g.LockWallet() // already locked
		assert.False(t, g.IsWalletUnlocked())

		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		g.LockWallet()
		assert.False(t, g.IsWalletUnlocked())
	})

	t.Run("lock invalidates every account session regardless of remember", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		registerTestAccount(t, g, "acct-2", "pw2")

		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), true))
		require.NoError(t, g.UnlockAccount("acct-2", []byte("pw2"), false))

		g.LockWallet()

		assert.False(t, g.IsAccountUnlocked("acct-1"))
		assert.False(t, g.IsAccountUnlocked("acct-2"))
		err := g.UseMasterCredential(func([]byte) error { return nil })
		assert.ErrorIs(t, err, ErrWalletLocked)
	})
}

func TestGuard_UnlockAccount(t *testing.T) {
	t.Run("requires wallet session", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		err := g.UnlockAccount("acct-1", []byte("pw1"), false)
		assert.ErrorIs(t, err, ErrWalletLocked)
	})

	t.Run("wrong password is generic", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))

		err := g.UnlockAccount("acct-1", []byte("bad"), false)
		assert.ErrorIs(t, err, ErrInvalidCredential)
		assert.False(t, g.IsAccountUnlocked("acct-1"))
	})

	t.Run("unknown account is a distinct state error", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		err := g.UnlockAccount("ghost", []byte("pw"), false)
		assert.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("remember retains the credential for the session", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), true))

		var got []byte
		err := g.UseAccountCredential("acct-1", func(b []byte) error {
			got = append([]byte(nil), b...)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("pw1"), got)
	})

	t.Run("without remember the credential is not retained", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), false))

		assert.True(t, g.IsAccountUnlocked("acct-1"))
		err := g.UseAccountCredential("acct-1", func([]byte) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}

func TestGuard_Expiry(t *testing.T) {
	t.Run("session expires after inactivity window", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), true))

		// Advance the clock past the window instead of sleeping.
		base := time.Now()
		g.now = func() time.Time { return base.Add(2 * time.Minute) }

		assert.False(t, g.IsAccountUnlocked("acct-1"))
	})

	t.Run("touch resets the window", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), false))

		base := time.Now()
		g.now = func() time.Time { return base.Add(45 * time.Second) }
		g.TouchAccount("acct-1")

		g.now = func() time.Time { return base.Add(100 * time.Second) }
		assert.True(t, g.IsAccountUnlocked("acct-1"))

		g.now = func() time.Time { return base.Add(3 * time.Minute) }
		assert.False(t, g.IsAccountUnlocked("acct-1"))
	})

	t.Run("expiry is independent per account", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		registerTestAccount(t, g, "acct-2", "pw2")
		require.NoError(t, g.SetAccountTimeout("acct-2", 10*time.Minute))

		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), false))
		require.NoError(t, g.UnlockAccount("acct-2", []byte("pw2"), false))

		base := time.Now()
		g.now = func() time.Time { return base.Add(5 * time.Minute) }

		assert.False(t, g.IsAccountUnlocked("acct-1"))
		assert.True(t, g.IsAccountUnlocked("acct-2"))
	})

	t.Run("time until expiry decreases", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), false))

		first, ok := g.TimeUntilExpiry("acct-1")
		require.True(t, ok)

		base := time.Now()
		g.now = func() time.Time { return base.Add(30 * time.Second) }
		second, ok := g.TimeUntilExpiry("acct-1")
		require.True(t, ok)
		assert.Less(t, second, first)
	})

	t.Run("touching an expired session does not revive it", func(t *testing.T) {
		g := newTestGuard(t, time.Minute)
		registerTestAccount(t, g, "acct-1", "pw1")
		require.NoError(t, g.UnlockWallet([]byte("master-credential")))
		require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), false))

		base := time.Now()
		g.now = func() time.Time { return base.Add(2 * time.Minute) }
		g.TouchAccount("acct-1")

		assert.False(t, g.IsAccountUnlocked("acct-1"))
	})
}

func TestGuard_DropAccount(t *testing.T) {
	g := newTestGuard(t, time.Minute)
	registerTestAccount(t, g, "acct-1", "pw1")
	require.NoError(t, g.UnlockWallet([]byte("master-credential")))
	require.NoError(t, g.UnlockAccount("acct-1", []byte("pw1"), true))

	g.DropAccount("acct-1")

	assert.False(t, g.IsAccountUnlocked("acct-1"))
	err := g.UnlockAccount("acct-1", []byte("pw1"), false)
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestCheckValue(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		cv, err := NewCheckValue([]byte("hunter2hunter2"))
		require.NoError(t, err)
		assert.True(t, cv.Verify([]byte("hunter2hunter2")))
		assert.False(t, cv.Verify([]byte("hunter3hunter3")))
	})

	t.Run("zero value verifies nothing", func(t *testing.T) {
		var cv CheckValue
		assert.False(t, cv.Verify([]byte("")))
	})

	t.Run("distinct salts per derivation", func(t *testing.T) {
		a, err := NewCheckValue([]byte("same"))
		require.NoError(t, err)
		b, err := NewCheckValue([]byte("same"))
		require.NoError(t, err)
		assert.NotEqual(t, a.Salt, b.Salt)
	})
}

func TestSecret(t *testing.T) {
	t.Run("wipe zeroes the buffer", func(t *testing.T) {
		raw := []byte("sensitive")
		s := NewSecret(raw)
		s.Wipe()
		err := s.Use(func([]byte) error { return nil })
		assert.ErrorIs(t, err, ErrWalletLocked)
	})

	t.Run("nil secret is safe", func(t *testing.T) {
		var s *Secret
		s.Wipe()
		err := s.Use(func([]byte) error { return nil })
		assert.ErrorIs(t, err, ErrWalletLocked)
	})
}
