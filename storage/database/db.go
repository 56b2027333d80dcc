package database

import (
	"context"
	"database/sql"
	"net/url"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/storage/database/migrations"
)

const driverName = "sqlite"

var (
	gooseOnce sync.Once
	gooseErr  error

	// tables wiped by the clear-database flow, children first
	schoolTables     = []string{"invoices", "payments", "reports", "students"}
	credentialTables = []string{"teachers", "staffs", "admins"}
)

// DSN enables foreign keys, WAL and a busy timeout so that concurrent writers wait instead of failing.
func DSN(path string) string {
	q := make(url.Values)
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (and creates if needed) the SQLite database file at path.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, DSN(path))
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "pinging database %s", path)
	}
	return db, nil
}

// DBs are the two databases of the portal.
type DBs struct {
	School     *sqlx.DB
	Credential *sqlx.DB
}

func OpenAll(conf *core.Config) (*DBs, error) {
	school, err := Open(conf.Database.SchoolPath)
	if err != nil {
		return nil, err
	}
	cred, err := Open(conf.Database.CredentialPath)
	if err != nil {
		_ = school.Close()
		return nil, err
	}
	return &DBs{School: school, Credential: cred}, nil
}

func (dbs *DBs) Close() error {
	errSchool := dbs.School.Close()
	if err := dbs.Credential.Close(); err != nil {
		return errors.Wrap(err, "closing credential database")
	}
	return errors.Wrap(errSchool, "closing school database")
}

// Migrate brings both databases up to date.
func (dbs *DBs) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, dbs.Credential.DB, migrations.CredentialDir); err != nil {
		return err
	}
	return Migrate(ctx, dbs.School.DB, migrations.SchoolDir)
}

func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		goose.SetLogger(goose.NopLogger())
		gooseErr = goose.SetDialect("sqlite3")
	})
	return gooseErr
}

// Migrate applies the embedded migrations found in dir.
func Migrate(ctx context.Context, db *sql.DB, dir string) error {
	if err := setupGoose(); err != nil {
		return errors.Wrap(err, "setting up goose")
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errors.Wrapf(err, "migrating %s database", dir)
	}
	return nil
}

// RunGoose runs any goose command against the migrations of dir.
func RunGoose(command string, db *sql.DB, dir string, args ...string) error {
	if err := setupGoose(); err != nil {
		return errors.Wrap(err, "setting up goose")
	}
	return goose.Run(command, db, dir, args...)
}

// Wiper empties both databases; used by the debug-only clear-database flow.
type Wiper struct {
	School     core.DB
	Credential core.DB
}

func (w Wiper) Wipe(ctx context.Context) error {
	if err := wipe(ctx, w.School, schoolTables); err != nil {
		return errors.Wrap(err, "wiping school database")
	}
	if err := wipe(ctx, w.Credential, credentialTables); err != nil {
		return errors.Wrap(err, "wiping credential database")
	}
	return nil
}

func wipe(ctx context.Context, db core.DB, tables []string) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range tables {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "deleting %s", table)
		}
	}
	return tx.Commit()
}
