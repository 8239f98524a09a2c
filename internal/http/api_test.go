package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"income-tax/internal/repository"
	"income-tax/internal/repository/filestore"
	"income-tax/internal/service"
)

type testServer struct {
	router *gin.Engine
	store  repository.CollectionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, service.UserServiceConfig{})
}

func newTestServerWith(t *testing.T, userCfg service.UserServiceConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger, _ := logtest.NewNullLogger()

	store := filestore.NewStore(t.TempDir())
	require.NoError(t, store.Init(ctx))

	taxes := service.NewTaxService(repository.NewRateRepository(store), logger)
	taxes.Bootstrap(ctx)
	userCfg.Logger = logger
	users := service.NewUserService(repository.NewCredentialRepository(store), userCfg)
	users.Bootstrap(ctx)

	router := gin.New()
	NewHandler(taxes, users, NewTokenIssuer("test-secret", time.Hour), logger).RegisterRoutes(router)
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestLogin_SeedAdmin(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	s.login(t, "alice", "pw")

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// persisted as a whole collection
	payload, err := s.store.Get(context.Background(), repository.KeyUsers)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"alice"`)
}

func TestRegister_PasswordRejectedByScheme(t *testing.T) {
	s := newTestServerWith(t, service.UserServiceConfig{Scheme: service.BcryptPasswords{Cost: 4}})

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "eve", "password": strings.Repeat("x", 80)})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "eve", "password": "short"})
	assert.Equal(t, http.StatusCreated, rec.Code, "rejected password must not reserve the username")
}

func TestAdminRoutes_EmptySeedConfigFallsBackToDefaults(t *testing.T) {
	s := newTestServerWith(t, service.UserServiceConfig{SeedUsername: "", SeedPassword: ""})
	admin := s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodGet, "/api/users", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes_CustomSeedUsername(t *testing.T) {
	s := newTestServerWith(t, service.UserServiceConfig{SeedUsername: "root"})
	root := s.login(t, "root", "admin123")

	rec := s.do(t, http.MethodGet, "/api/users", root, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTaxRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/tax/compute", "", gin.H{"salary": 20000})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/rates", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestComputeTax(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodPost, "/api/tax/compute", token, gin.H{
		"salary":          20000,
		"social_security": 2000,
		"provident_fund":  "1000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "360.00", decode[map[string]string](t, rec)["tax"])

	rec = s.do(t, http.MethodPost, "/api/tax/compute", token, gin.H{"salary": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplainTax(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodPost, "/api/tax/explain", token, gin.H{
		"salary":           50000,
		"bonus":            30000,
		"other_deductions": 8000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[BreakdownResponse](t, rec)
	assert.Equal(t, "67000.00", resp.TaxableIncome)
	assert.Equal(t, "4180.00", resp.Tax)
	require.NotNil(t, resp.Rate)
	assert.Equal(t, "0.1", *resp.Rate)
	require.NotNil(t, resp.QuickDeduction)
	assert.Equal(t, "2520.00", *resp.QuickDeduction)
	assert.Equal(t, "Tax payable: 4180.00", resp.Details[len(resp.Details)-1])

	rec = s.do(t, http.MethodPost, "/api/tax/explain", token, gin.H{"salary": 3000})
	resp = decode[BreakdownResponse](t, rec)
	assert.False(t, resp.Taxable)
	assert.Equal(t, "0.00", resp.Tax)
	assert.Nil(t, resp.Rate)
}

func TestRates(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "admin", "admin123")

	rec := s.do(t, http.MethodGet, "/api/rates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Brackets []BracketResponse `json:"brackets"`
	}](t, rec)
	require.Len(t, resp.Brackets, 7)
	assert.Nil(t, resp.Brackets[6].Upper)
	assert.Equal(t, "181920.00", resp.Brackets[6].QuickDeduction)
}

func TestReplaceRates(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin", "admin123")

	table := gin.H{
		"derive_quick_deductions": true,
		"brackets": []gin.H{
			{"lower": 0, "upper": 10000, "rate": "0.1"},
			{"lower": 10000, "upper": nil, "rate": "0.2"},
		},
	}
	rec := s.do(t, http.MethodPut, "/api/rates", admin, table)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/tax/compute", admin, gin.H{"salary": 25000})
	assert.Equal(t, "3000.00", decode[map[string]string](t, rec)["tax"])

	gapped := gin.H{"brackets": []gin.H{
		{"lower": 0, "upper": 10000, "rate": "0.1"},
		{"lower": 20000, "upper": nil, "rate": "0.2", "quick_deduction": 1000},
	}}
	rec = s.do(t, http.MethodPut, "/api/rates", admin, gapped)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminRoutesForbiddenForUsers(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "bob", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := s.login(t, "bob", "pw")

	rec = s.do(t, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.login(t, "admin", "admin123")
	rec = s.do(t, http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"admin", "bob"}, decode[map[string][]string](t, rec)["usernames"])
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, _, err := issuer.Issue("alice")
	require.NoError(t, err)

	username, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = NewTokenIssuer("other", time.Minute).Verify(token)
	assert.ErrorIs(t, err, errInvalidToken)

	expired := NewTokenIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Verify(token)
	assert.ErrorIs(t, err, errInvalidToken)
}
