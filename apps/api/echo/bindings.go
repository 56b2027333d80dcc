package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
)

// accountQuery is bound from `?search=&status=&ordering=username,-id`.
type accountQuery struct {
	Filter    account.QueryFilter
	Orderings []core.DBOrdering
}

func bindAccountQuery(ctx echo.Context) (accountQuery, error) {
	var (
		q                          accountQuery
		search, status, orderingQs string
	)
	err := echo.QueryParamsBinder(ctx).
		String("search", &search).
		String("status", &status).
		String("ordering", &orderingQs).
		BindError()
	if err != nil {
		return q, errors.Wrap(err, "binding query params")
	}

	q.Filter = account.QueryFilter{Search: search, Status: account.Status(status)}
	q.Orderings = core.ParseOrdering(orderingQs)
	return q, nil
}
