package sqliterepo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
)

// orderable columns per table; anything else is rejected
var orderFields = map[string]bool{"id": true, "username": true, "gender": true, "status": true}

type accountRepository struct {
	exec core.DBExecutor
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(exec core.DBExecutor) *accountRepository {
	return &accountRepository{exec: exec}
}

// trapNoRowsErr maps sqlite "no rows" err to account.ErrNotFound
func (repo accountRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps the username UNIQUE constraint to account.ErrUsernameExists
func (repo accountRepository) trapUniqueErr(err error, msg string) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")) {
			return account.ErrUsernameExists
		}
	}
	return errors.Wrap(err, msg)
}

func tableOf(kind account.Kind) (string, error) {
	if table := kind.Table(); table != "" {
		return table, nil
	}
	return "", account.ErrInvalidKind
}

// checkTable only lets through the fixed table names, since they are spliced into SQL.
func checkTable(table string) error {
	for _, kind := range account.Kinds {
		if kind.Table() == table {
			return nil
		}
	}
	return errors.Wrapf(account.ErrInvalidKind, "table %q", table)
}

func selectFrom(kind account.Kind) string {
	if kind.HasStatus() {
		return "SELECT id, COALESCE(username, '') AS username, COALESCE(password, '') AS password, " +
			"COALESCE(gender, '') AS gender, COALESCE(status, '') AS status FROM " + kind.Table()
	}
	return "SELECT id, COALESCE(username, '') AS username, COALESCE(password, '') AS password, " +
		"'' AS gender, '' AS status FROM " + kind.Table()
}

func withKind(kind account.Kind, accs []account.Account) []account.Account {
	for i := range accs {
		accs[i].Kind = kind
	}
	return accs
}

func (repo accountRepository) CheckUsernameUniqueness(ctx context.Context, kind account.Kind, username string) error {
	table, err := tableOf(kind)
	if err != nil {
		return err
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM " + table + " WHERE username = ?)"
	if err = repo.exec.GetContext(ctx, &exists, q, username); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if exists {
		return account.ErrUsernameExists
	}
	return nil
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	table, err := tableOf(acc.Kind)
	if err != nil {
		return account.Account{}, err
	}

	var res sql.Result
	if acc.Kind.HasStatus() {
		if acc.Status == "" {
			acc.Status = account.StatusActive
		}
		res, err = repo.exec.ExecContext(ctx,
			"INSERT INTO "+table+" (username, password, gender, status) VALUES (?, ?, ?, ?)",
			acc.Username, acc.Password, acc.Gender, acc.Status)
	} else {
		res, err = repo.exec.ExecContext(ctx,
			"INSERT INTO "+table+" (username, password) VALUES (?, ?)",
			acc.Username, acc.Password)
	}
	if err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "inserting account")
	}
	if acc.ID, err = res.LastInsertId(); err != nil {
		return account.Account{}, errors.Wrap(err, "reading account id")
	}
	return acc, nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, kind account.Kind, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.Account, error) {
	if _, err := tableOf(kind); err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		// case-insensitive substring match, without LIKE wildcards
		if filter.Search != "" {
			conds = append(conds, "instr(lower(username), lower(?)) > 0")
			args = append(args, filter.Search)
		}
		if filter.Status != "" && kind.HasStatus() {
			conds = append(conds, "status = ?")
			args = append(args, filter.Status)
		}
	}

	q := selectFrom(kind)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if !orderFields[ord.Field] || (!kind.HasStatus() && (ord.Field == "gender" || ord.Field == "status")) {
			return nil, core.NewFieldError("ordering", errors.Errorf("invalid ordering field: %s", ord.Field))
		}
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	accs := make([]account.Account, 0)
	if err := repo.exec.SelectContext(ctx, &accs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	return withKind(kind, accs), nil
}

func (repo accountRepository) GetAccount(ctx context.Context, kind account.Kind, filter account.GetFilter) (account.Account, error) {
	if _, err := tableOf(kind); err != nil {
		return account.Account{}, err
	}

	var (
		cond string
		arg  interface{}
	)
	switch {
	case filter.ID != 0:
		cond, arg = "id = ?", filter.ID
	case filter.Username != "":
		cond, arg = "username = ?", filter.Username
	default:
		return account.Account{}, account.ErrNotFound
	}
	q := selectFrom(kind) + " WHERE " + cond
	if filter.ActiveOnly && kind.HasStatus() {
		q += " AND status = 'active'"
	}

	var acc account.Account
	if err := repo.exec.GetContext(ctx, &acc, q, arg); err != nil {
		return account.Account{}, repo.trapNoRowsErr(err, "getting account")
	}
	acc.Kind = kind
	return acc, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	table, err := tableOf(acc.Kind)
	if err != nil {
		return account.Account{}, err
	}

	var res sql.Result
	if acc.Kind.HasStatus() {
		res, err = repo.exec.ExecContext(ctx,
			"UPDATE "+table+" SET username = ?, password = ?, gender = ?, status = ? WHERE id = ?",
			acc.Username, acc.Password, acc.Gender, acc.Status, acc.ID)
	} else {
		res, err = repo.exec.ExecContext(ctx,
			"UPDATE "+table+" SET username = ?, password = ? WHERE id = ?",
			acc.Username, acc.Password, acc.ID)
	}
	if err != nil {
		return account.Account{}, repo.trapUniqueErr(err, "updating account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if n == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

func (repo accountRepository) DeleteAccountsByID(ctx context.Context, kind account.Kind, ids ...int64) error {
	table, err := tableOf(kind)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	q, args, err := sqlx.In("DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.exec.ExecContext(ctx, repo.exec.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting accounts")
	}
	return nil
}

func (repo accountRepository) DeleteAllAccounts(ctx context.Context, kind account.Kind) (int64, error) {
	table, err := tableOf(kind)
	if err != nil {
		return 0, err
	}
	res, err := repo.exec.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, errors.Wrap(err, "deleting all accounts")
	}
	return res.RowsAffected()
}

// ReplacePassword is a compare-and-swap on a single row: it only writes if the row still holds old.
func (repo accountRepository) ReplacePassword(ctx context.Context, table string, id int64, old, new string) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}

	res, err := repo.exec.ExecContext(ctx, "UPDATE "+table+" SET password = ? WHERE id = ? AND password = ?", new, id, old)
	if err != nil {
		return false, errors.Wrap(err, "replacing password")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "replacing password")
	}
	return n == 1, nil
}

func (repo accountRepository) StoredPassword(ctx context.Context, table string, id int64) (string, error) {
	if err := checkTable(table); err != nil {
		return "", err
	}

	var pwd string
	if err := repo.exec.GetContext(ctx, &pwd, "SELECT COALESCE(password, '') FROM "+table+" WHERE id = ?", id); err != nil {
		return "", repo.trapNoRowsErr(err, "reading password")
	}
	return pwd, nil
}
