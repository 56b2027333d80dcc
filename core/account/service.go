package account

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/credential"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrUsernameExists     = errors.New("an account with this username already exists")
	ErrInvalidKind        = errors.New("invalid account kind")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoStatus           = errors.New("admin accounts have no activation status")
)

// Login outcomes reported to Service.OnLogin.
const (
	OutcomeSuccess       = "success"
	OutcomeRejected      = "rejected"
	OutcomeUpgradeFailed = "upgrade_failed"
)

type (
	Repository interface {
		credential.Store

		// CheckUsernameUniqueness returns ErrUsernameExists if username is taken in the table of kind.
		CheckUsernameUniqueness(ctx context.Context, kind Kind, username string) error
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		// QueryAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Account.Username.
		QueryAccounts(ctx context.Context, kind Kind, filter *QueryFilter, ordering []core.DBOrdering) ([]Account, error)
		GetAccount(ctx context.Context, kind Kind, filter GetFilter) (Account, error)
		// UpdateAccount writes Username, Password, Gender and Status of acc.
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
		DeleteAccountsByID(ctx context.Context, kind Kind, ids ...int64) error
		DeleteAllAccounts(ctx context.Context, kind Kind) (int64, error)
	}

	Service struct {
		repo     Repository
		verifier *credential.Verifier
		log      core.Logger

		// OnLogin, if set, is called once per Authenticate with one of the Outcome* values.
		OnLogin func(kind Kind, outcome string)
	}
)

func NewService(repo Repository, verifier *credential.Verifier, logger core.Logger) *Service {
	return &Service{repo: repo, verifier: verifier, log: logger}
}

func (svc *Service) checkUniqueness(ctx context.Context, kind Kind, uname string) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, kind, uname); err != nil {
		if err == ErrUsernameExists {
			return core.NewFieldError("username", err)
		}
		return err
	}
	return nil
}

func (svc *Service) observe(kind Kind, outcome string) {
	if svc.OnLogin != nil {
		svc.OnLogin(kind, outcome)
	}
}

// Authenticate logs username in as an account of kind.
// Unknown, inactive and wrong-password logins all return ErrInvalidCredentials,
// and so does a matching legacy password that could not be upgraded.
func (svc *Service) Authenticate(ctx context.Context, kind Kind, username, pwd string) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}

	acc, err := svc.repo.GetAccount(ctx, kind, GetFilter{Username: username, ActiveOnly: kind.HasStatus()})
	if err != nil {
		if err == ErrNotFound {
			svc.verifier.Reject(pwd)
			svc.observe(kind, OutcomeRejected)
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, errors.Wrap(err, "looking up account")
	}

	ok, err := svc.verifier.Verify(ctx, svc.repo, kind.Table(), acc.ID, acc.Password, pwd)
	if err != nil {
		svc.log.Error("credential upgrade failed", err, map[string]interface{}{"kind": kind, "id": acc.ID})
		svc.observe(kind, OutcomeUpgradeFailed)
		return Account{}, ErrInvalidCredentials
	}
	if !ok {
		svc.observe(kind, OutcomeRejected)
		return Account{}, ErrInvalidCredentials
	}

	svc.observe(kind, OutcomeSuccess)
	return svc.reload(ctx, acc), nil
}

// ConfirmPassword re-checks the password of a logged in account before a destructive action.
func (svc *Service) ConfirmPassword(ctx context.Context, kind Kind, id int64, pwd string) error {
	acc, err := svc.repo.GetAccount(ctx, kind, GetFilter{ID: id, ActiveOnly: kind.HasStatus()})
	if err != nil {
		if err == ErrNotFound {
			svc.verifier.Reject(pwd)
			return ErrInvalidCredentials
		}
		return errors.Wrap(err, "looking up account")
	}

	ok, err := svc.verifier.Verify(ctx, svc.repo, kind.Table(), acc.ID, acc.Password, pwd)
	if err != nil {
		svc.log.Error("credential upgrade failed", err, map[string]interface{}{"kind": kind, "id": acc.ID})
		return ErrInvalidCredentials
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// reload fetches acc again so that callers see the upgraded password; acc is returned as is on failure.
func (svc *Service) reload(ctx context.Context, acc Account) Account {
	fresh, err := svc.repo.GetAccount(ctx, acc.Kind, GetFilter{ID: acc.ID})
	if err != nil {
		return acc
	}
	return fresh
}

// Create validates na and stores it with a hashed password.
func (svc *Service) Create(ctx context.Context, na NewAccount) (Account, error) {
	if err := na.Validate(ctx, svc); err != nil {
		return Account{}, err
	}

	hash, err := svc.verifier.Hashers().Make(na.Password)
	if err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	acc := Account{
		Kind:     na.Kind,
		Username: na.Username,
		Password: hash,
		Gender:   na.Gender,
	}
	if na.Kind.HasStatus() {
		acc.Status = StatusActive
	}

	acc, err = svc.repo.CreateAccount(ctx, acc)
	if err == ErrUsernameExists { // lost a race against another insert
		return Account{}, core.NewFieldError("username", err)
	}
	return acc, err
}

// SetStatus activates or puts on standby a teacher or staff account.
// The stored password is left untouched.
func (svc *Service) SetStatus(ctx context.Context, kind Kind, id int64, su StatusUpdate) (Account, error) {
	if !kind.HasStatus() {
		return Account{}, ErrNoStatus
	}
	if err := su.Validate(); err != nil {
		return Account{}, err
	}

	acc, err := svc.repo.GetAccount(ctx, kind, GetFilter{ID: id})
	if err != nil {
		return Account{}, err
	}
	if acc.Status == su.Status {
		return acc, nil
	}
	acc.Status = su.Status
	return svc.repo.UpdateAccount(ctx, acc)
}

// ResetPassword replaces the password of the account named pr.Username with a fresh hash.
func (svc *Service) ResetPassword(ctx context.Context, kind Kind, pr PasswordReset) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}
	if err := pr.Validate(); err != nil {
		return Account{}, err
	}

	acc, err := svc.repo.GetAccount(ctx, kind, GetFilter{Username: pr.Username})
	if err != nil {
		return Account{}, err
	}
	if acc.Password, err = svc.verifier.Hashers().Make(pr.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}
	if acc, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return Account{}, err
	}
	svc.log.Info(fmt.Sprintf("password of %s %q was reset", kind, acc.Username))
	return acc, nil
}

func (svc *Service) Query(ctx context.Context, kind Kind, filter *QueryFilter, ordering ...core.DBOrdering) ([]Account, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryAccounts(ctx, kind, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, kind Kind, id int64) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}
	return svc.repo.GetAccount(ctx, kind, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, kind Kind, uname string) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}
	return svc.repo.GetAccount(ctx, kind, GetFilter{Username: uname})
}

// GetActive returns the account only if it may still log in; used to refresh sessions.
func (svc *Service) GetActive(ctx context.Context, kind Kind, id int64) (Account, error) {
	if !kind.Valid() {
		return Account{}, ErrInvalidKind
	}
	return svc.repo.GetAccount(ctx, kind, GetFilter{ID: id, ActiveOnly: kind.HasStatus()})
}

func (svc *Service) Delete(ctx context.Context, kind Kind, ids ...int64) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	return svc.repo.DeleteAccountsByID(ctx, kind, ids...)
}
