package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
)

var (
	signingMethod     = jwt.SigningMethodHS256
	contextClaimsKey  = "claims"
	contextAccountKey = "account"
	audience          = "school-portal"
)

// Claims represents the session claims carried by the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64        `json:"oriat,omitempty"`
	AccountID    int64        `json:"aid"`
	Kind         account.Kind `json:"kind"`
	Username     string       `json:"username,omitempty"`
}

func (c Claims) IsAdmin() bool {
	return c.Kind == account.KindAdmin
}

func GetAccountClaims(acc account.Account, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    core.Conf.AppName,
			Subject:   string(acc.Kind) + ":" + strconv.FormatInt(acc.ID, 10),
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(core.Conf.Server.SessionExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		AccountID:    acc.ID,
		Kind:         acc.Kind,
		Username:     acc.Username,
	}
}

// GenerateToken generates a signed JWT token string representing the session Claims.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(core.Conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return []byte(core.Conf.SecretKey), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Kind.Valid() || claims.AccountID == 0 {
		return nil, errors.New("incomplete session claims")
	}
	return claims, nil
}

func newSessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !core.Conf.Debug,
		SameSite: http.SameSiteLaxMode,
	}
}

// startSession sets the session cookie for acc.
func startSession(ctx echo.Context, acc account.Account, origIat ...int64) error {
	claims := GetAccountClaims(acc, origIat...)
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	ctx.SetCookie(newSessionCookie(token, claims.ExpiresAt.Time))
	return nil
}

func endSession(ctx echo.Context) {
	cookie := newSessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	ctx.SetCookie(cookie)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextAccount(ctx echo.Context, svc *account.Service) (account.Account, error) {
	if acc, ok := ctx.Get(contextAccountKey).(account.Account); ok {
		return acc, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "getting context claims")
	}
	acc, err := svc.GetActive(ctx.Request().Context(), claims.Kind, claims.AccountID)
	if err != nil {
		if err == account.ErrNotFound {
			return account.Account{}, errAccountDeactivated
		}
		return account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	ctx.Set(contextAccountKey, acc)
	return acc, nil
}

// refreshSession re-issues the session if the account may still log in and the refresh window is open.
func refreshSession(ctx echo.Context, svc *account.Service) (account.Account, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "getting context claims")
	}

	acc, err := getContextAccount(ctx, svc)
	if err != nil {
		return account.Account{}, err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.SessionRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return account.Account{}, errRefreshExpired
	}

	if err = startSession(ctx, acc, claims.OrigIssuedAt); err != nil {
		return account.Account{}, err
	}
	return acc, nil
}

func cookieName() string {
	return core.Conf.Server.CookieName
}
