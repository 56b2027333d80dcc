package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/core/credential"
	logsvc "github.com/trezcool/schoolportal/services/logger"
	"github.com/trezcool/schoolportal/storage/database"
	"github.com/trezcool/schoolportal/storage/database/migrations"
)

func prepareDB(t *testing.T, name, dir string) *sqlx.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db.DB, dir); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// PrepareDB returns a migrated credential database in a temporary directory.
func PrepareDB(t *testing.T) *sqlx.DB {
	return prepareDB(t, "credential.db", migrations.CredentialDir)
}

// PrepareSchoolDB returns a migrated school database in a temporary directory.
func PrepareSchoolDB(t *testing.T) *sqlx.DB {
	return prepareDB(t, "school.db", migrations.SchoolDir)
}

// CreateAccount stores pwd as is, so that legacy plaintext rows can be set up.
// Use a hash as pwd to create an already upgraded account.
func CreateAccount(
	t *testing.T,
	repo account.Repository,
	kind account.Kind,
	uname, pwd string,
	status ...account.Status,
) account.Account {
	t.Helper()
	acc := account.Account{
		Kind:     kind,
		Username: uname,
		Password: pwd,
	}
	if kind.HasStatus() {
		acc.Gender = "Other"
		acc.Status = account.StatusActive
		if len(status) > 0 {
			acc.Status = status[0]
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// DeleteAllAccounts empties every account table of repo.
func DeleteAllAccounts(t *testing.T, repo account.Repository) {
	t.Helper()
	for _, kind := range account.Kinds {
		if _, err := repo.DeleteAllAccounts(context.Background(), kind); err != nil {
			t.Fatalf("DeleteAllAccounts() failed: %v", err)
		}
	}
}

// Logger returns a logger that reports nowhere.
func Logger() core.Logger {
	std := logrus.New()
	std.SetOutput(io.Discard)
	l := logsvc.NewRollbarLogger(std, core.Conf)
	l.Enable(false)
	return l
}

// Hashers returns drivers with cheap parameters; production defaults take hundreds of milliseconds per hash.
func Hashers(t *testing.T, alg ...credential.Algorithm) *credential.Hashers {
	t.Helper()
	opts := credential.Options{
		Algorithm:        credential.Scrypt,
		SaltLength:       16,
		PBKDF2Hash:       "sha256",
		PBKDF2Iterations: 1000,
		ScryptN:          16,
		ScryptR:          8,
		ScryptP:          1,
		Argon2Variant:    "id",
		Argon2Memory:     64,
		Argon2Time:       1,
		Argon2Threads:    1,
	}
	if len(alg) > 0 {
		opts.Algorithm = alg[0]
	}
	hs, err := credential.NewHashers(opts)
	if err != nil {
		t.Fatalf("Hashers() failed: %v", err)
	}
	return hs
}

// NewAccountService wires a Service over repo with cheap hashers.
func NewAccountService(t *testing.T, repo account.Repository) *account.Service {
	t.Helper()
	logger := Logger()
	return account.NewService(repo, credential.NewVerifier(Hashers(t), logger), logger)
}

// Hash hashes pwd with cheap parameters.
func Hash(t *testing.T, pwd string) string {
	t.Helper()
	hash, err := Hashers(t).Make(pwd)
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	return hash
}
