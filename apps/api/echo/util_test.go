package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/schoolportal/apps/api/echo"
	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/core/credential"
	metricsvc "github.com/trezcool/schoolportal/services/metrics"
	"github.com/trezcool/schoolportal/storage/database"
	"github.com/trezcool/schoolportal/storage/database/sqlite"
	"github.com/trezcool/schoolportal/tests"
)

type env struct {
	srv     Server
	repo    account.Repository
	school  *sqlx.DB
	metrics *metricsvc.Metrics
}

func setup(t *testing.T, debug ...bool) env {
	t.Helper()

	// set up DBs & repos
	cred := testutil.PrepareDB(t)
	school := testutil.PrepareSchoolDB(t)
	repo := sqliterepo.NewAccountRepository(cred)

	// set up services
	logger := testutil.Logger()
	m := metricsvc.New()
	verifier := credential.NewVerifier(testutil.Hashers(t), logger)
	verifier.OnUpgrade = m.RecordUpgrade
	svc := account.NewService(repo, verifier, logger)
	svc.OnLogin = func(kind account.Kind, outcome string) { m.RecordLogin(string(kind), outcome) }

	dbg := true
	if len(debug) > 0 {
		dbg = debug[0]
	}

	// set up server
	srv := NewServer(
		&Options{
			Debug:          dbg,
			DisableReqLogs: true,
			AccountSvc:     svc,
			Wiper:          database.Wiper{School: school, Credential: cred},
			Metrics:        m,
			Logger:         logger,
		},
	)
	return env{srv: srv, repo: repo, school: school, metrics: m}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: core.Conf.Server.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func serve(srv Server, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	srv.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, acc account.Account, origIat ...int64) string {
	claims := GetAccountClaims(acc, origIat...)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == core.Conf.Server.CookieName {
			return c
		}
	}
	return nil
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData skips the body comparison when tt.wantData is nil.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
