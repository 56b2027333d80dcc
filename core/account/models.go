package account

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
)

// Kind is the principal table an account lives in.
type Kind string

const (
	KindAdmin   Kind = "admin"
	KindTeacher Kind = "teacher"
	KindStaff   Kind = "staff"
)

var (
	Kinds = []Kind{KindAdmin, KindTeacher, KindStaff}

	kindTables = map[Kind]string{
		KindAdmin:   "admins",
		KindTeacher: "teachers",
		KindStaff:   "staffs",
	}
)

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.Wrapf(ErrInvalidKind, "%q", s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// Table returns the credential table of k, or "" for an unknown kind.
// Callers never build SQL with anything else.
func (k Kind) Table() string {
	return kindTables[k]
}

// HasStatus reports whether accounts of this kind can be put on standby.
func (k Kind) HasStatus() bool {
	return k == KindTeacher || k == KindStaff
}

// Status is the activation status of teacher and staff accounts.
type Status string

const (
	StatusActive  Status = "active"
	StatusStandby Status = "standby"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusStandby
}

// Genders accepted for teacher and staff accounts.
var Genders = []string{"Male", "Female", "Other"}

type Account struct {
	ID       int64  `json:"id" db:"id"`
	Kind     Kind   `json:"kind" db:"-"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
	Gender   string `json:"gender,omitempty" db:"gender"`
	Status   Status `json:"status,omitempty" db:"status"`
}

// IsActive reports whether the account may log in. Admins are always active.
func (acc Account) IsActive() bool {
	return !acc.Kind.HasStatus() || acc.Status == StatusActive
}

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	Kind     Kind   `json:"kind" validate:"required,kind"`
	Username string `json:"username" validate:"required,max=150,alphanum_"`
	Password string `json:"password" validate:"required"`
	Gender   string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
}

func (na *NewAccount) Validate(ctx context.Context, svc *Service) error {
	na.Username = strings.TrimSpace(na.Username)
	na.Gender = strings.TrimSpace(na.Gender)
	if !na.Kind.HasStatus() {
		na.Gender = ""
	}

	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, na.Kind, na.Username)
}

// PasswordReset sets a new password on an existing account.
type PasswordReset struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (pr PasswordReset) Validate() error { return core.Validate.Struct(pr) }

// StatusUpdate flips the activation status of a teacher or staff account.
type StatusUpdate struct {
	Status Status `json:"status" validate:"required,oneof=active standby"`
}

func (su StatusUpdate) Validate() error { return core.Validate.Struct(su) }

type QueryFilter struct {
	Search string `query:"search"`
	Status Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = strings.TrimSpace(qf.Search)
	qf.Status = Status(strings.ToLower(strings.TrimSpace(string(qf.Status))))
}

// GetFilter selects one account, by ID or else by exact Username.
// ActiveOnly hides teacher and staff accounts on standby.
type GetFilter struct {
	ID         int64
	Username   string
	ActiveOnly bool
}
