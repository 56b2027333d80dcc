package credential

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a single-table Store whose failures can be injected.
type memStore struct {
	mu        sync.Mutex
	passwords map[int64]string
	writes    int

	replaceErr error
	readErr    error
	// beforeReplace runs inside ReplacePassword before the swap, to simulate a concurrent writer.
	beforeReplace func(s *memStore, id int64)
}

var _ Store = (*memStore)(nil) // interface compliance check

func newMemStore(id int64, pwd string) *memStore {
	return &memStore{passwords: map[int64]string{id: pwd}}
}

func (s *memStore) ReplacePassword(_ context.Context, _ string, id int64, old, new string) (bool, error) {
	if s.replaceErr != nil {
		return false, s.replaceErr
	}
	if s.beforeReplace != nil {
		hook := s.beforeReplace
		s.beforeReplace = nil
		hook(s, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwords[id] != old {
		return false, nil
	}
	s.passwords[id] = new
	s.writes++
	return true, nil
}

func (s *memStore) StoredPassword(_ context.Context, _ string, id int64) (string, error) {
	if s.readErr != nil {
		return "", s.readErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwords[id], nil
}

func (s *memStore) get(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwords[id]
}

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	return NewVerifier(testHashers(t, Scrypt), nil)
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()
	v := testVerifier(t)

	pbkdf2Hash := "pbkdf2:sha256:1000$abcdefgh$864b98d9e0043ee90fba5175b8e63efe05668667efcb2ab8d2975526b5adacb6"

	tests := []struct {
		name       string
		stored     string
		candidate  string
		want       bool
		wantStored string // "" means the stored value must now be a fresh hash
	}{
		{name: "legacy match is upgraded", stored: "secret123", candidate: "secret123", want: true},
		{name: "legacy mismatch", stored: "secret123", candidate: "wrong", want: false, wantStored: "secret123"},
		{name: "legacy prefix", stored: "secret123", candidate: "secret12", want: false, wantStored: "secret123"},
		{name: "legacy is case-sensitive", stored: "secret123", candidate: "SECRET123", want: false, wantStored: "secret123"},
		{name: "empty candidate against legacy", stored: "secret123", candidate: "", want: false, wantStored: "secret123"},
		{name: "hashed match is not rehashed", stored: pbkdf2Hash, candidate: "secret123", want: true, wantStored: pbkdf2Hash},
		{name: "hashed mismatch", stored: pbkdf2Hash, candidate: "wrong", want: false, wantStored: pbkdf2Hash},
		{name: "hash text as candidate", stored: pbkdf2Hash, candidate: pbkdf2Hash, want: false, wantStored: pbkdf2Hash},
		{name: "empty stored and empty candidate", stored: "", candidate: "", want: false},
		{name: "empty stored", stored: "", candidate: "secret123", want: false},
		{name: "malformed hash", stored: "scrypt:garbage", candidate: "scrypt:garbage", want: false, wantStored: "scrypt:garbage"},
		{name: "malformed params", stored: "argon2:id:x:1:1$salt$00", candidate: "secret123", want: false, wantStored: "argon2:id:x:1:1$salt$00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(1, tt.stored)

			got, err := v.Verify(ctx, store, "teachers", 1, tt.stored, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			switch {
			case tt.stored == "":
				assert.Equal(t, "", store.get(1), "empty passwords are never migrated")
				assert.Zero(t, store.writes)
			case tt.wantStored == "":
				upgraded := store.get(1)
				assert.NotEqual(t, tt.stored, upgraded)
				assert.True(t, strings.HasPrefix(upgraded, "scrypt:"), upgraded)
				assert.Equal(t, 1, store.writes)
			default:
				assert.Equal(t, tt.wantStored, store.get(1))
				assert.Zero(t, store.writes)
			}
		})
	}
}

func TestVerifier_UpgradeIdempotence(t *testing.T) {
	ctx := context.Background()
	v := testVerifier(t)

	var upgrades []int64
	v.OnUpgrade = func(table string, id int64) {
		assert.Equal(t, "staffs", table)
		upgrades = append(upgrades, id)
	}

	store := newMemStore(7, "secret123")
	ok, err := v.Verify(ctx, store, "staffs", 7, "secret123", "secret123")
	require.NoError(t, err)
	require.True(t, ok)

	upgraded := store.get(7)
	require.True(t, IsHashed(upgraded))

	// next login goes through the hashed branch
	ok, err = v.Verify(ctx, store, "staffs", 7, upgraded, "secret123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, upgraded, store.get(7))

	ok, err = v.Verify(ctx, store, "staffs", 7, upgraded, "secret124")
	require.NoError(t, err)
	assert.False(t, ok)

	// the old plaintext is no longer stored, so it cannot be replayed as a legacy match
	ok, err = v.Verify(ctx, store, "staffs", 7, upgraded, upgraded)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, store.writes)
	assert.Equal(t, []int64{7}, upgrades)
}

func TestVerifier_UpgradeFailure(t *testing.T) {
	ctx := context.Background()
	v := testVerifier(t)
	v.OnUpgrade = func(string, int64) { t.Error("OnUpgrade must not run when the upgrade failed") }

	dbErr := errors.New("database is locked")
	store := newMemStore(3, "secret123")
	store.replaceErr = dbErr

	ok, err := v.Verify(ctx, store, "admins", 3, "secret123", "secret123")
	assert.False(t, ok)
	require.Error(t, err)

	var upErr *UpgradeError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "admins", upErr.Table)
	assert.Equal(t, int64(3), upErr.ID)
	assert.True(t, errors.Is(err, dbErr))

	// the legacy password still works once the store recovers
	assert.Equal(t, "secret123", store.get(3))
	store.replaceErr = nil
	v.OnUpgrade = nil
	ok, err = v.Verify(ctx, store, "admins", 3, "secret123", "secret123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifier_LostRace(t *testing.T) {
	ctx := context.Background()
	v := testVerifier(t)

	t.Run("concurrent upgrade of the same password", func(t *testing.T) {
		store := newMemStore(1, "secret123")
		var winner string
		store.beforeReplace = func(s *memStore, id int64) {
			winner, _ = v.hashers.Make("secret123")
			s.passwords[id] = winner
		}

		ok, err := v.Verify(ctx, store, "teachers", 1, "secret123", "secret123")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, winner, store.get(1), "the row is hashed exactly once")
	})

	t.Run("password reset meanwhile", func(t *testing.T) {
		store := newMemStore(1, "secret123")
		store.beforeReplace = func(s *memStore, id int64) {
			s.passwords[id], _ = v.hashers.Make("brand-new")
		}

		ok, err := v.Verify(ctx, store, "teachers", 1, "secret123", "secret123")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("legacy reset meanwhile", func(t *testing.T) {
		store := newMemStore(1, "secret123")
		store.beforeReplace = func(s *memStore, id int64) {
			s.passwords[id] = "plain-again"
		}

		ok, err := v.Verify(ctx, store, "teachers", 1, "secret123", "secret123")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "plain-again", store.get(1))
	})

	t.Run("re-read fails", func(t *testing.T) {
		store := newMemStore(1, "secret123")
		store.readErr = errors.New("disk I/O error")
		store.beforeReplace = func(s *memStore, id int64) {
			s.passwords[id] = "other"
		}

		ok, err := v.Verify(ctx, store, "teachers", 1, "secret123", "secret123")
		assert.False(t, ok)
		var upErr *UpgradeError
		assert.True(t, errors.As(err, &upErr))
	})
}

func TestVerifier_ConcurrentLogins(t *testing.T) {
	ctx := context.Background()
	v := testVerifier(t)

	var mu sync.Mutex
	upgrades := 0
	v.OnUpgrade = func(string, int64) {
		mu.Lock()
		upgrades++
		mu.Unlock()
	}

	store := newMemStore(1, "secret123")
	const logins = 8
	results := make([]bool, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := v.Verify(ctx, store, "teachers", 1, "secret123", "secret123")
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "login %d", i)
	}
	assert.Equal(t, 1, upgrades)
	assert.Equal(t, 1, store.writes)
	assert.True(t, IsHashed(store.get(1)))
}

func TestVerifier_Reject(t *testing.T) {
	v := testVerifier(t)
	assert.False(t, v.Reject("secret123"))
	assert.False(t, v.Reject(""))
	assert.True(t, v.dummy.Valid())
}

func TestVerifier_VerifyOutOfRangeParams(t *testing.T) {
	v := NewVerifier(testHashers(t, Scrypt), nil)
	for _, stored := range []string{
		"scrypt:16384:8:0$salt$abcd",
		"scrypt:16384:0:1$salt$abcd",
		"scrypt:1073741824:8:1$salt$abcd",
		"argon2:id:4294967295:1:1$salt$abcd",
		"pbkdf2:sha256:2000000000$salt$abcd",
	} {
		t.Run(stored, func(t *testing.T) {
			store := newMemStore(1, stored)
			var (
				ok  bool
				err error
			)
			assert.NotPanics(t, func() {
				ok, err = v.Verify(context.Background(), store, "admins", 1, stored, "x")
			})
			assert.NoError(t, err)
			assert.False(t, ok)
			assert.Zero(t, store.writes, "a hashed credential is never rewritten")
		})
	}
}
