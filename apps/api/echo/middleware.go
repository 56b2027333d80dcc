package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core/account"
	metricsvc "github.com/trezcool/schoolportal/services/metrics"
)

// sessionMiddleware loads the Claims of a valid session cookie into the context.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cookie, err := ctx.Cookie(cookieName())
		if err != nil || cookie.Value == "" {
			return errUnauthorized
		}
		claims, err := parseToken(cookie.Value)
		if err != nil {
			ctx.Logger().Debugf("rejected session: %v", err)
			return errUnauthorized
		}
		ctx.Set(contextClaimsKey, claims)
		return next(ctx)
	}
}

// adminMiddleware requires an admin session whose account still exists.
func adminMiddleware(svc *account.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin() {
				return errHttpForbidden
			}
			if _, err = getContextAccount(ctx, svc); err != nil {
				if err == errAccountDeactivated {
					endSession(ctx)
				}
				return err
			}
			return next(ctx)
		}
	}
}

func debugOnlyMiddleware(debug bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !debug {
				return errNotAllowed
			}
			return next(ctx)
		}
	}
}

// metricsMiddleware observes the duration of every request by route pattern.
func metricsMiddleware(m *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordRequest(
				ctx.Request().Method,
				route,
				strconv.Itoa(ctx.Response().Status),
				time.Since(start),
			)
			return nil
		}
	}
}
