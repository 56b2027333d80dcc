package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core/account"
)

type (
	LoginRequest struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}

	ConfirmRequest struct {
		Password string `json:"password" form:"password"`
	}

	accountApi struct {
		svc   *account.Service
		wiper Wiper
		debug bool
	}
)

func registerAccountAPI(app *echo.Echo, opts *Options) {
	api := accountApi{svc: opts.AccountSvc, wiper: opts.Wiper, debug: opts.Debug}

	app.POST("/login", api.login(account.KindTeacher))
	app.POST("/staff-login", api.login(account.KindStaff))
	app.POST("/admin-login", api.login(account.KindAdmin))
	app.POST("/logout", api.logout)

	session := app.Group("/session", sessionMiddleware)
	session.GET("", api.current)
	session.POST("/refresh", api.refresh)

	admin := app.Group("/admin", sessionMiddleware, adminMiddleware(opts.AccountSvc))
	admin.GET("/accounts/:kind", api.query)
	admin.POST("/accounts", api.create)
	admin.GET("/accounts/:kind/:id", api.retrieve)
	admin.PUT("/accounts/:kind/:id/status", api.setStatus)
	admin.DELETE("/accounts/:kind/:id", api.destroy)
	admin.POST("/clear-database", api.clearDatabase, debugOnlyMiddleware(opts.Debug))
}

// login authenticates against the table of kind and starts a session.
// Every credential failure gets the same response.
func (api accountApi) login(kind account.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data LoginRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to LoginRequest")
		}

		acc, err := api.svc.Authenticate(ctx.Request().Context(), kind, data.Username, data.Password)
		if err != nil {
			if err == account.ErrInvalidCredentials {
				return errAuthenticationFailed
			}
			return errors.Wrap(err, "authenticating")
		}

		if err := startSession(ctx, acc); err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, acc)
	}
}

func (api accountApi) logout(ctx echo.Context) error {
	endSession(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api accountApi) current(ctx echo.Context) error {
	acc, err := getContextAccount(ctx, api.svc)
	if err != nil {
		if err == errAccountDeactivated {
			endSession(ctx)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api accountApi) refresh(ctx echo.Context) error {
	acc, err := refreshSession(ctx, api.svc)
	if err != nil {
		if err == errAccountDeactivated {
			endSession(ctx)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api accountApi) query(ctx echo.Context) error {
	kind, err := account.ParseKind(ctx.Param("kind"))
	if err != nil {
		return err
	}

	q, err := bindAccountQuery(ctx)
	if err != nil {
		return err
	}

	accounts, err := api.svc.Query(ctx.Request().Context(), kind, &q.Filter, q.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying accounts")
	}
	if accounts == nil {
		accounts = []account.Account{}
	}
	return ctx.JSON(http.StatusOK, accounts)
}

func (api accountApi) create(ctx echo.Context) error {
	var data account.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	acc, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api accountApi) retrieve(ctx echo.Context) error {
	kind, id, err := kindAndID(ctx)
	if err != nil {
		return err
	}
	acc, err := api.svc.GetByID(ctx.Request().Context(), kind, id)
	if err != nil {
		return errors.Wrap(err, "getting account")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api accountApi) setStatus(ctx echo.Context) error {
	kind, id, err := kindAndID(ctx)
	if err != nil {
		return err
	}
	var data account.StatusUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}

	acc, err := api.svc.SetStatus(ctx.Request().Context(), kind, id, data)
	if err != nil {
		return errors.Wrap(err, "setting status")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api accountApi) destroy(ctx echo.Context) error {
	kind, id, err := kindAndID(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if kind == claims.Kind && id == claims.AccountID {
		return echo.NewHTTPError(http.StatusBadRequest, "you cannot delete your own account")
	}

	if _, err := api.svc.GetByID(ctx.Request().Context(), kind, id); err != nil {
		return errors.Wrap(err, "getting account")
	}
	if err := api.svc.Delete(ctx.Request().Context(), kind, id); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// clearDatabase wipes every table once the admin has confirmed their password.
func (api accountApi) clearDatabase(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data ConfirmRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmRequest")
	}

	if err := api.svc.ConfirmPassword(ctx.Request().Context(), claims.Kind, claims.AccountID, data.Password); err != nil {
		if err == account.ErrInvalidCredentials {
			return errIncorrectPassword
		}
		return errors.Wrap(err, "confirming password")
	}

	if err := api.wiper.Wipe(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "wiping database")
	}
	endSession(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{"success": "database cleared"})
}

func kindAndID(ctx echo.Context) (account.Kind, int64, error) {
	kind, err := account.ParseKind(ctx.Param("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errHttpNotFound
	}
	return kind, id, nil
}
