package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/internal/auth/store/drivers/sqlite"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/jwtx"
)

const (
	testIssuer   = "https://auth.test"
	testClientID = "web-client"
	testRedirect = "https://app.example/cb"
	testUserID   = "usr_0001"
	testUsername = "alice"
	testPassword = "correct horse battery staple"
)

var testAudience = []string{"nimbus-api"}

var (
	keysOnce sync.Once
	keysVal  *jwtx.KeyManager

	hashOnce sync.Once
	hashVal  string
)

func testKeys() *jwtx.KeyManager {
	keysOnce.Do(func() {
		keysVal = jwtx.NewKeyManager(jwtx.KeyManagerOptions{
			Issuer:   testIssuer,
			Audience: testAudience,
		})
		if err := keysVal.Load(); err != nil {
			panic(err)
		}
	})
	return keysVal
}

func testPasswordHash() string {
	hashOnce.Do(func() {
		h, err := cryptox.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		hashVal = h
	})
	return hashVal
}

type routerHarness struct {
	router *Router
	store  store.Store
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	validator, err := service.NewRedirectValidator(nil, []string{`^app\.example$`})
	require.NoError(t, err)

	clients := &service.ClientService{Store: st, Validator: validator}
	require.NoError(t, clients.SeedDefaults(ctx))
	_, err = clients.CreateClient(ctx, domain.Client{
		ID:            testClientID,
		Name:          "Web Client",
		RedirectURIs:  []string{testRedirect},
		AllowedScopes: []string{"openid", "profile", "email"},
		Public:        true,
	})
	require.NoError(t, err)

	identity := service.NewStaticIdentityProvider([]domain.User{{
		ID:           testUserID,
		Username:     testUsername,
		Tenant:       "acme",
		Roles:        []string{"Admin"},
		PasswordHash: testPasswordHash(),
	}})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewRouter(testKeys(), testIssuer, "test", st, logger)
	r.AuthorizeService = &service.AuthorizeService{Store: st, Clients: clients, Identity: identity}
	r.TokenService = &service.TokenService{
		Store:    st,
		Keys:     testKeys(),
		Identity: identity,
		Issuer:   testIssuer,
		Audience: testAudience,
	}
	r.ClientService = clients
	require.NoError(t, r.ApplyRoutes())

	return &routerHarness{router: r, store: st}
}

func (h *routerHarness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *routerHarness) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

// runCodeFlow drives authorize, login, and exchange, returning the decoded
// token response.
func (h *routerHarness) runCodeFlow(t *testing.T) domain.TokenPair {
	t.Helper()

	authz := "/oauth/authorize?" + url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirect},
		"response_type": {"code"},
		"scope":         {"openid profile"},
		"state":         {"st4te"},
	}.Encode()
	rec := h.do(t, httptest.NewRequest(http.MethodGet, authz, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/oauth/login", loc.Path)
	requestID := loc.Query().Get("request_id")
	require.NotEmpty(t, requestID)

	rec = h.postForm(t, "/oauth/login", url.Values{
		"request_id": {requestID},
		"username":   {testUsername},
		"password":   {testPassword},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	cb, err := url.Parse(login.RedirectURI)
	require.NoError(t, err)
	require.Equal(t, "st4te", cb.Query().Get("state"))
	code := cb.Query().Get("code")
	require.NotEmpty(t, code)

	rec = h.postForm(t, "/oauth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {testClientID},
		"code":         {code},
		"redirect_uri": {testRedirect},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func TestAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	pair := h.runCodeFlow(t)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(3600), pair.ExpiresIn)
	require.Equal(t, "openid profile", pair.Scope)
}

func TestAuthorizeErrors(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	t.Run("missing client_id", func(t *testing.T) {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, "/oauth/authorize?redirect_uri=x&response_type=code", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_request")
	})

	t.Run("unknown client", func(t *testing.T) {
		target := "/oauth/authorize?" + url.Values{
			"client_id":     {"ghost"},
			"redirect_uri":  {testRedirect},
			"response_type": {"code"},
		}.Encode()
		rec := h.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_client")
	})

	t.Run("excessive scope", func(t *testing.T) {
		target := "/oauth/authorize?" + url.Values{
			"client_id":     {testClientID},
			"redirect_uri":  {testRedirect},
			"response_type": {"code"},
			"scope":         {"admin:everything"},
		}.Encode()
		rec := h.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_scope")
	})

	t.Run("unsupported response type", func(t *testing.T) {
		target := "/oauth/authorize?" + url.Values{
			"client_id":     {testClientID},
			"redirect_uri":  {testRedirect},
			"response_type": {"token"},
		}.Encode()
		rec := h.do(t, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "unsupported_response_type")
	})
}

func TestLoginErrors(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	t.Run("bad credentials", func(t *testing.T) {
		authz := "/oauth/authorize?" + url.Values{
			"client_id":     {testClientID},
			"redirect_uri":  {testRedirect},
			"response_type": {"code"},
		}.Encode()
		rec := h.do(t, httptest.NewRequest(http.MethodGet, authz, nil))
		require.Equal(t, http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)

		rec = h.postForm(t, "/oauth/login", url.Values{
			"request_id": {loc.Query().Get("request_id")},
			"username":   {testUsername},
			"password":   {"wrong"},
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "access_denied")
	})

	t.Run("unknown request handle", func(t *testing.T) {
		rec := h.postForm(t, "/oauth/login", url.Values{
			"request_id": {"nope"},
			"username":   {testUsername},
			"password":   {testPassword},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := h.postForm(t, "/oauth/login", url.Values{"username": {testUsername}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTokenEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("refresh grant rotates", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		pair := h.runCodeFlow(t)

		rec := h.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {pair.RefreshToken},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var rotated domain.TokenPair
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

		// The predecessor no longer works.
		rec = h.postForm(t, "/oauth/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {pair.RefreshToken},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		rec := h.postForm(t, "/oauth/token", url.Values{"grant_type": {"password"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "unsupported_grant_type")
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := h.do(t, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad code", func(t *testing.T) {
		t.Parallel()
		h := newRouterHarness(t)
		rec := h.postForm(t, "/oauth/token", url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {"bogus"},
			"redirect_uri": {testRedirect},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})
}

func TestRevokeEndpoint(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)
	pair := h.runCodeFlow(t)

	rec := h.postForm(t, "/oauth/revoke", url.Values{
		"token":           {pair.RefreshToken},
		"token_type_hint": {"refresh_token"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown tokens also succeed.
	rec = h.postForm(t, "/oauth/revoke", url.Values{"token": {"never-issued"}})
	require.Equal(t, http.StatusOK, rec.Code)

	// Unsupported hints do not.
	rec = h.postForm(t, "/oauth/revoke", url.Values{
		"token":           {"anything"},
		"token_type_hint": {"access_token"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The revoked token can no longer refresh.
	rec = h.postForm(t, "/oauth/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {pair.RefreshToken},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInfo(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)
	pair := h.runCodeFlow(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := h.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var info UserInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, testUserID, info.Subject)
	require.Equal(t, testUsername, info.Username)
	require.Equal(t, "acme", info.Tenant)
	require.Equal(t, []string{"Admin"}, info.Roles)
	require.Equal(t, []string{"openid", "profile"}, info.Scopes)

	t.Run("missing token", func(t *testing.T) {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth/userinfo", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := h.do(t, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestWellKnownEndpoints(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	t.Run("jwks", func(t *testing.T) {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var jwks jwtx.JWKS
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "RSA", jwks.Keys[0].Kty)
		require.Equal(t, "RS256", jwks.Keys[0].Alg)
		require.NotEmpty(t, jwks.Keys[0].Kid)
	})

	t.Run("openid configuration", func(t *testing.T) {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var doc DiscoveryDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		require.Equal(t, testIssuer, doc.Issuer)
		require.Equal(t, testIssuer+"/oauth/token", doc.TokenEndpoint)
		require.Equal(t, []string{"code"}, doc.ResponseTypesSupported)
		require.Equal(t, []string{"S256", "plain"}, doc.CodeChallengeMethodsSupported)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	rec := h.do(t, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
}

func TestClientsAPI(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)
	pair := h.runCodeFlow(t)

	authed := func(method, path, body string) *http.Request {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, rd)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		return req
	}

	t.Run("requires authentication", func(t *testing.T) {
		rec := h.do(t, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create list get update delete", func(t *testing.T) {
		rec := h.do(t, authed(http.MethodPost, "/api/clients",
			`{"name":"demo","redirect_uris":["https://app.example/cb2"]}`))
		require.Equal(t, http.StatusCreated, rec.Code)

		var created ClientResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		require.NotEmpty(t, created.ClientID)
		require.Equal(t, []string{"openid", "profile", "email"}, created.AllowedScopes)

		rec = h.do(t, authed(http.MethodGet, "/api/clients", ""))
		require.Equal(t, http.StatusOK, rec.Code)
		var list []ClientResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.NotEmpty(t, list)

		rec = h.do(t, authed(http.MethodGet, "/api/clients/"+created.ClientID, ""))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = h.do(t, authed(http.MethodPut, "/api/clients/"+created.ClientID,
			`{"description":"updated"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		var updated ClientResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		require.Equal(t, "updated", updated.Description)

		rec = h.do(t, authed(http.MethodDelete, "/api/clients/"+created.ClientID, ""))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = h.do(t, authed(http.MethodGet, "/api/clients/"+created.ClientID, ""))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		rec := h.do(t, authed(http.MethodPost, "/api/clients", `{"client_id":"dup","name":"one"}`))
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = h.do(t, authed(http.MethodPost, "/api/clients", `{"client_id":"dup","name":"two"}`))
		require.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRateLimitOnLogin(t *testing.T) {
	t.Parallel()
	h := newRouterHarness(t)

	form := url.Values{
		"request_id": {"whatever"},
		"username":   {"bruteforce"},
		"password":   {"guess"},
	}

	var limited bool
	for i := 0; i < 10; i++ {
		rec := h.postForm(t, "/oauth/login", form)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited)
}
