package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) tableOf(kind account.Kind) (*accountTable, error) {
	if t, ok := repo.db.tables[kind]; ok {
		return t, nil
	}
	return nil, account.ErrInvalidKind
}

func (repo *accountRepository) tableNamed(name string) (*accountTable, error) {
	for _, kind := range account.Kinds {
		if kind.Table() == name {
			return repo.tableOf(kind)
		}
	}
	return nil, account.ErrInvalidKind
}

// query returns copies of the rows of t; t must be locked.
func (t *accountTable) query() []account.Account {
	accs := make([]account.Account, 0, len(t.table))
	for _, acc := range t.table {
		accs = append(accs, *acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
	return accs
}

func (t *accountTable) usernameTaken(username string, exclID int64) bool {
	for _, acc := range t.table {
		if acc.Username == username && acc.ID != exclID {
			return true
		}
	}
	return false
}

func (repo *accountRepository) CheckUsernameUniqueness(_ context.Context, kind account.Kind, username string) error {
	t, err := repo.tableOf(kind)
	if err != nil {
		return err
	}
	t.RLock()
	defer t.RUnlock()

	if t.usernameTaken(username, 0) {
		return account.ErrUsernameExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	t, err := repo.tableOf(acc.Kind)
	if err != nil {
		return account.Account{}, err
	}
	t.Lock()
	defer t.Unlock()

	if t.usernameTaken(acc.Username, 0) {
		return account.Account{}, account.ErrUsernameExists
	}
	t.pkCount++
	acc.ID = t.pkCount
	if acc.Kind.HasStatus() && acc.Status == "" {
		acc.Status = account.StatusActive
	}
	t.table[acc.ID] = &acc
	return acc, nil
}

func (repo *accountRepository) QueryAccounts(_ context.Context, kind account.Kind, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.Account, error) {
	t, err := repo.tableOf(kind)
	if err != nil {
		return nil, err
	}
	t.RLock()
	defer t.RUnlock()

	accs := t.query()
	if filter != nil && !filter.IsEmpty() {
		search := strings.ToLower(filter.Search)
		filtered := make([]account.Account, 0, len(accs))
		for _, acc := range accs {
			if search != "" && !strings.Contains(strings.ToLower(acc.Username), search) {
				continue
			}
			if filter.Status != "" && acc.Status != filter.Status {
				continue
			}
			filtered = append(filtered, acc)
		}
		accs = filtered
	}

	if len(ordering) > 0 {
		sort.SliceStable(accs, func(i, j int) bool {
			for _, ord := range ordering {
				a, b := orderKey(accs[i], ord.Field), orderKey(accs[j], ord.Field)
				if a == b {
					continue
				}
				if ord.Ascending {
					return a < b
				}
				return a > b
			}
			return false
		})
	}
	return accs, nil
}

func orderKey(acc account.Account, field string) string {
	switch field {
	case "username":
		return acc.Username
	case "status":
		return string(acc.Status)
	case "gender":
		return acc.Gender
	default: // id, zero-padded so that string order is numeric order
		return fmt.Sprintf("%020d", acc.ID)
	}
}

func (repo *accountRepository) GetAccount(_ context.Context, kind account.Kind, filter account.GetFilter) (account.Account, error) {
	t, err := repo.tableOf(kind)
	if err != nil {
		return account.Account{}, err
	}
	t.RLock()
	defer t.RUnlock()

	var found *account.Account
	switch {
	case filter.ID != 0:
		found = t.table[filter.ID]
	case filter.Username != "":
		for _, acc := range t.table {
			if acc.Username == filter.Username {
				found = acc
				break
			}
		}
	}
	if found == nil || (filter.ActiveOnly && !found.IsActive()) {
		return account.Account{}, account.ErrNotFound
	}
	return *found, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account) (account.Account, error) {
	t, err := repo.tableOf(acc.Kind)
	if err != nil {
		return account.Account{}, err
	}
	t.Lock()
	defer t.Unlock()

	orig, ok := t.table[acc.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	if t.usernameTaken(acc.Username, acc.ID) {
		return account.Account{}, account.ErrUsernameExists
	}
	orig.Username = acc.Username
	orig.Password = acc.Password
	if acc.Kind.HasStatus() {
		orig.Gender = acc.Gender
		orig.Status = acc.Status
	}
	return *orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(_ context.Context, kind account.Kind, ids ...int64) error {
	t, err := repo.tableOf(kind)
	if err != nil {
		return err
	}
	t.Lock()
	defer t.Unlock()
	for _, id := range ids {
		delete(t.table, id)
	}
	return nil
}

func (repo *accountRepository) DeleteAllAccounts(_ context.Context, kind account.Kind) (int64, error) {
	t, err := repo.tableOf(kind)
	if err != nil {
		return 0, err
	}
	t.Lock()
	defer t.Unlock()
	n := int64(len(t.table))
	t.table = make(map[int64]*account.Account)
	return n, nil
}

func (repo *accountRepository) ReplacePassword(_ context.Context, table string, id int64, old, new string) (bool, error) {
	t, err := repo.tableNamed(table)
	if err != nil {
		return false, err
	}
	t.Lock()
	defer t.Unlock()

	acc, ok := t.table[id]
	if !ok || acc.Password != old {
		return false, nil
	}
	acc.Password = new
	return true, nil
}

func (repo *accountRepository) StoredPassword(_ context.Context, table string, id int64) (string, error) {
	t, err := repo.tableNamed(table)
	if err != nil {
		return "", err
	}
	t.RLock()
	defer t.RUnlock()

	acc, ok := t.table[id]
	if !ok {
		return "", account.ErrNotFound
	}
	return acc.Password, nil
}
