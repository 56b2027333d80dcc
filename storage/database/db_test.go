package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/storage/database"
	"github.com/trezcool/schoolportal/storage/database/migrations"
	"github.com/trezcool/schoolportal/storage/database/sqlite"
	"github.com/trezcool/schoolportal/tests"
)

func TestOpenAll_Migrate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	conf := *core.Conf
	conf.Database.SchoolPath = filepath.Join(dir, "school.db")
	conf.Database.CredentialPath = filepath.Join(dir, "credential.db")

	dbs, err := database.OpenAll(&conf)
	require.NoError(t, err)
	defer dbs.Close()

	require.NoError(t, dbs.Migrate(ctx))
	require.NoError(t, dbs.Migrate(ctx), "migrating twice is a no-op")

	var fk int
	require.NoError(t, dbs.School.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, dbs.Credential.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)

	_, err = dbs.Credential.Exec("INSERT INTO teachers (username, password, status) VALUES ('x', 'y', 'retired')")
	assert.Error(t, err, "status is constrained")
}

func TestWiper_Wipe(t *testing.T) {
	ctx := context.Background()
	school := testutil.PrepareSchoolDB(t)
	cred := testutil.PrepareDB(t)
	repo := sqliterepo.NewAccountRepository(cred)

	school.MustExec("INSERT INTO students (id, name, class, grade) VALUES (1, 'Neema', '4B', '4')")
	school.MustExec("INSERT INTO payments (student_id, amount) VALUES (1, 120.5)")
	school.MustExec("INSERT INTO invoices (student_id, invoice_no) VALUES (1, 'INV-1')")
	school.MustExec("INSERT INTO reports (teacher_id, student_name, student_score) VALUES (1, 'Neema', 88)")
	for _, kind := range account.Kinds {
		testutil.CreateAccount(t, repo, kind, "someone", "secret123")
	}

	w := database.Wiper{School: school, Credential: cred}
	require.NoError(t, w.Wipe(ctx))

	for _, table := range []string{"students", "payments", "invoices", "reports"} {
		var n int
		require.NoError(t, school.Get(&n, "SELECT COUNT(*) FROM "+table))
		assert.Zero(t, n, table)
	}
	for _, kind := range account.Kinds {
		accs, err := repo.QueryAccounts(ctx, kind, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, accs, kind)
	}
}

func TestWiper_rollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM invoices").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM payments").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	w := database.Wiper{School: sqlx.NewDb(db, "sqlite"), Credential: sqlx.NewDb(db, "sqlite")}
	err = w.Wipe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiping school database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunGoose(t *testing.T) {
	db := testutil.PrepareDB(t)
	assert.NoError(t, database.RunGoose("status", db.DB, migrations.CredentialDir))
	assert.NoError(t, database.RunGoose("version", db.DB, migrations.CredentialDir))
	assert.Error(t, database.RunGoose("lol", db.DB, migrations.CredentialDir))
}
