package service

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/internal/auth/store/drivers/sqlite"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/jwtx"
)

const (
	testUserID   = "usr_0001"
	testUsername = "alice"
	testPassword = "correct horse battery staple"
	testTenant   = "acme"
	testClientID = "web-client"
	testRedirect = "https://app.example/cb"
	testIssuer   = "https://auth.test"
)

var testAudience = []string{"nimbus-api"}

// Hashing and key generation are slow enough to share across tests.
var (
	hashOnce sync.Once
	hashVal  string

	keysOnce sync.Once
	keysVal  *jwtx.KeyManager
)

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := cryptox.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		hashVal = h
	})
	return hashVal
}

func testKeys(t *testing.T) *jwtx.KeyManager {
	t.Helper()
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

type harness struct {
	store    store.Store
	clients  *ClientService
	identity *StaticIdentityProvider
	authz    *AuthorizeService
	tokens   *TokenService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	validator, err := NewRedirectValidator(nil, []string{`^app\.example$`})
	require.NoError(t, err)

	clients := &ClientService{Store: st, Validator: validator}
	require.NoError(t, clients.SeedDefaults(ctx))

	_, err = clients.CreateClient(ctx, domain.Client{
		ID:            testClientID,
		Name:          "Web Client",
		RedirectURIs:  []string{testRedirect, "http://localhost:3000/callback"},
		AllowedScopes: []string{"openid", "profile", "email"},
		Public:        true,
	})
	require.NoError(t, err)

	identity := NewStaticIdentityProvider([]domain.User{{
		ID:           testUserID,
		Username:     testUsername,
		Tenant:       testTenant,
		Roles:        []string{"Admin", "User"},
		PasswordHash: testPasswordHash(t),
	}})

	authz := &AuthorizeService{
		Store:    st,
		Clients:  clients,
		Identity: identity,
	}
	tokens := &TokenService{
		Store:    st,
		Keys:     testKeys(t),
		Identity: identity,
		Issuer:   testIssuer,
		Audience: testAudience,
	}

	return &harness{
		store:    st,
		clients:  clients,
		identity: identity,
		authz:    authz,
		tokens:   tokens,
	}
}

// authorizeAndLogin walks the front half of the flow and returns the code
// handed back on the login redirect.
func (h *harness) authorizeAndLogin(t *testing.T, req AuthorizeRequest) string {
	t.Helper()
	ctx := context.Background()

	pending, err := h.authz.Authorize(ctx, req)
	require.NoError(t, err)

	redirect, err := h.authz.CompleteLogin(ctx, pending.ID, testUsername, testPassword)
	require.NoError(t, err)
	return codeFromRedirect(t, redirect)
}

func codeFromRedirect(t *testing.T, redirect string) string {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func defaultAuthorizeRequest() AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:     testClientID,
		RedirectURI:  testRedirect,
		ResponseType: "code",
		Scopes:       []string{"openid", "profile"},
		State:        "xyz",
	}
}
