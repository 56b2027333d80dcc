package credential

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
)

// Store is the slice of a credential table the verifier writes through.
type Store interface {
	// ReplacePassword swaps the password of row id from old to new in a single committed update.
	// It reports false when the row no longer holds old.
	ReplacePassword(ctx context.Context, table string, id int64, old, new string) (bool, error)
	// StoredPassword returns the current password of row id.
	StoredPassword(ctx context.Context, table string, id int64) (string, error)
}

// UpgradeError is returned when a matching legacy password could not be rewritten as a hash.
// The login must fail; the legacy password stays usable for a retry.
type UpgradeError struct {
	Table string
	ID    int64
	Err   error
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("upgrading %s#%d password: %v", e.Table, e.ID, e.Err)
}

func (e *UpgradeError) Unwrap() error {
	return e.Err
}

// Verifier checks candidates against stored credentials and upgrades legacy ones.
type Verifier struct {
	hashers *Hashers
	logger  core.Logger

	// OnUpgrade, if set, is called after a legacy password was rewritten.
	OnUpgrade func(table string, id int64)

	dummyOnce sync.Once
	dummy     Hashed
}

func NewVerifier(hashers *Hashers, logger core.Logger) *Verifier {
	return &Verifier{hashers: hashers, logger: logger}
}

func (v *Verifier) Hashers() *Hashers {
	return v.hashers
}

// Verify reports whether candidate matches stored, the password of row id in table.
// A matching legacy password is rewritten with the default algorithm before Verify returns true.
// The returned error is always an *UpgradeError, and is only set when that rewrite failed.
func (v *Verifier) Verify(ctx context.Context, store Store, table string, id int64, stored, candidate string) (bool, error) {
	switch cred := Parse(stored).(type) {
	case Hashed:
		return v.checkHashed(table, id, cred, candidate), nil

	case Legacy:
		if subtle.ConstantTimeCompare([]byte(cred.Secret), []byte(candidate)) != 1 {
			return false, nil
		}
		return v.upgrade(ctx, store, table, id, stored, candidate)

	default:
		return false, nil
	}
}

func (v *Verifier) upgrade(ctx context.Context, store Store, table string, id int64, stored, candidate string) (bool, error) {
	newHash, err := v.hashers.Make(candidate)
	if err != nil {
		return false, &UpgradeError{Table: table, ID: id, Err: errors.Wrap(err, "hashing")}
	}

	swapped, err := store.ReplacePassword(ctx, table, id, stored, newHash)
	if err != nil {
		return false, &UpgradeError{Table: table, ID: id, Err: errors.Wrap(err, "replacing password")}
	}
	if swapped {
		if v.logger != nil {
			v.logger.Info(fmt.Sprintf("upgraded legacy password of %s#%d", table, id))
		}
		if v.OnUpgrade != nil {
			v.OnUpgrade(table, id)
		}
		return true, nil
	}

	// lost the race: another login (or a reset) rewrote the row first
	current, err := store.StoredPassword(ctx, table, id)
	if err != nil {
		return false, &UpgradeError{Table: table, ID: id, Err: errors.Wrap(err, "re-reading password")}
	}
	if cred, ok := Parse(current).(Hashed); ok {
		return v.checkHashed(table, id, cred, candidate), nil
	}
	return false, nil
}

func (v *Verifier) checkHashed(table string, id int64, cred Hashed, candidate string) bool {
	ok, err := v.hashers.Check(candidate, cred)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn(fmt.Sprintf("unreadable password hash on %s#%d", table, id), err)
		}
		return false
	}
	return ok
}

// Reject spends one default-algorithm check and returns false.
// Callers use it when the account does not exist, so that unknown users cost as much as wrong passwords.
func (v *Verifier) Reject(candidate string) bool {
	v.dummyOnce.Do(func() {
		if encoded, err := v.hashers.Make("not-a-real-password"); err == nil {
			v.dummy, _ = Parse(encoded).(Hashed)
		}
	})
	if v.dummy.Valid() {
		_, _ = v.hashers.Check(candidate, v.dummy)
	}
	return false
}
