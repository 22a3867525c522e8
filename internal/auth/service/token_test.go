package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/idx"
)

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestExchangeAuthorizationCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("full flow mints verifiable tokens", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())

		pair, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Equal(t, int64(3600), pair.ExpiresIn)
		require.Equal(t, int64(30*24*3600), pair.RefreshTokenExpiresIn)
		require.NotEmpty(t, pair.RefreshToken)
		require.Equal(t, "openid profile", pair.Scope)

		verifier, err := h.tokens.Keys.Verifier()
		require.NoError(t, err)
		claims, err := verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, testUserID, claims.Subject)
		require.Equal(t, testUsername, claims.Name)
		require.Equal(t, testTenant, claims.Tenant)
		require.Equal(t, []string{"Admin", "User"}, claims.Roles)
		require.Equal(t, []string{"openid", "profile"}, claims.Scopes)
		require.NotEmpty(t, claims.ID)
	})

	t.Run("code is single use", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)

		_, err = h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("redirect mismatch burns the code", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, "https://app.example/other", "")
		require.ErrorIs(t, err, ErrInvalidGrant)

		// A later attempt with the correct redirect also fails.
		_, err = h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("client mismatch", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, "spa-client", code, testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("expired code", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		now := time.Now().UTC()

		code, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)
		require.NoError(t, h.store.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
			ID:          idx.New().String(),
			CodeHash:    cryptox.FingerprintToken(code),
			ClientID:    testClientID,
			UserID:      testUserID,
			Username:    testUsername,
			Tenant:      testTenant,
			RedirectURI: testRedirect,
			Scopes:      []string{"openid"},
			ExpiresAt:   now.Add(-time.Second),
			CreatedAt:   now.Add(-11 * time.Minute),
		}))

		_, err = h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown and empty codes", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, "nope", testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)

		_, err = h.tokens.ExchangeAuthorizationCode(ctx, testClientID, "", testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("concurrent exchange has one winner", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
			}(i)
		}
		wg.Wait()

		var wins int
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, ErrInvalidGrant)
			}
		}
		require.Equal(t, 1, wins)
	})
}

func TestExchangeAuthorizationCodePKCE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	issue := func(t *testing.T, h *harness, challenge, method string) string {
		req := defaultAuthorizeRequest()
		req.CodeChallenge = challenge
		req.CodeChallengeMethod = method
		return h.authorizeAndLogin(t, req)
	}

	t.Run("S256 verifier accepted", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		verifier := "deadbeef-verifier-string-long-enough"
		code := issue(t, h, s256Challenge(verifier), "S256")

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, verifier)
		require.NoError(t, err)
	})

	t.Run("wrong verifier rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := issue(t, h, s256Challenge("the-right-verifier"), "S256")

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "the-wrong-verifier")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("missing verifier rejected when challenge bound", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := issue(t, h, s256Challenge("some-verifier"), "S256")

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("plain method compares verbatim", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := issue(t, h, "plain-challenge-value", "plain")

		_, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "plain-challenge-value")
		require.NoError(t, err)
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	issuePair := func(t *testing.T, h *harness) *domain.TokenPair {
		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())
		pair, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)
		return pair
	}

	t.Run("rotation revokes the predecessor", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		pair := issuePair(t, h)

		rotated, err := h.tokens.ExchangeRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
		require.Equal(t, pair.Scope, rotated.Scope)

		// The old record is revoked and points at its successor.
		old, err := h.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
		require.NoError(t, err)
		require.True(t, old.Revoked)
		require.NotNil(t, old.RevokedAt)
		require.Equal(t, cryptox.FingerprintToken(rotated.RefreshToken), old.ReplacedBy)

		// Reusing the old token fails, the new one works.
		_, err = h.tokens.ExchangeRefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
		_, err = h.tokens.ExchangeRefreshToken(ctx, rotated.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("roles come from a fresh identity lookup", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		pair := issuePair(t, h)

		// The user's roles change between issue and refresh.
		h.tokens.Identity = NewStaticIdentityProvider([]domain.User{{
			ID:           testUserID,
			Username:     testUsername,
			Tenant:       testTenant,
			Roles:        []string{"User"},
			PasswordHash: testPasswordHash(t),
		}})

		rotated, err := h.tokens.ExchangeRefreshToken(ctx, pair.RefreshToken)
		require.NoError(t, err)

		verifier, err := h.tokens.Keys.Verifier()
		require.NoError(t, err)
		claims, err := verifier.Verify(rotated.AccessToken)
		require.NoError(t, err)
		require.Equal(t, []string{"User"}, claims.Roles)
	})

	t.Run("unknown and empty tokens", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		_, err := h.tokens.ExchangeRefreshToken(ctx, "nope")
		require.ErrorIs(t, err, ErrInvalidGrant)
		_, err = h.tokens.ExchangeRefreshToken(ctx, "")
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		now := time.Now().UTC()

		opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.NoError(t, h.store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.New().String(),
			TokenHash: cryptox.FingerprintToken(opaque),
			UserID:    testUserID,
			Username:  testUsername,
			Tenant:    testTenant,
			ClientID:  testClientID,
			Scopes:    []string{"openid"},
			ExpiresAt: now.Add(-time.Minute),
			CreatedAt: now.Add(-31 * 24 * time.Hour),
		}))

		_, err = h.tokens.ExchangeRefreshToken(ctx, opaque)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		pair := issuePair(t, h)

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = h.tokens.ExchangeRefreshToken(ctx, pair.RefreshToken)
			}(i)
		}
		wg.Wait()

		var wins int
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, ErrInvalidGrant)
			}
		}
		require.Equal(t, 1, wins)
	})
}

func TestRevoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("revoked token can no longer refresh", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())
		pair, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)

		require.NoError(t, h.tokens.Revoke(ctx, pair.RefreshToken, "refresh_token"))

		_, err = h.tokens.ExchangeRefreshToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})

	t.Run("unknown token reports success", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		require.NoError(t, h.tokens.Revoke(ctx, "never-issued", ""))
	})

	t.Run("revocation is idempotent", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())
		pair, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)

		require.NoError(t, h.tokens.Revoke(ctx, pair.RefreshToken, ""))
		require.NoError(t, h.tokens.Revoke(ctx, pair.RefreshToken, ""))
	})

	t.Run("wrong hint rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		require.ErrorIs(t, h.tokens.Revoke(ctx, "anything", "access_token"), ErrInvalidRequest)
	})

	t.Run("revoke all for user", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		code := h.authorizeAndLogin(t, defaultAuthorizeRequest())
		first, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)

		code = h.authorizeAndLogin(t, defaultAuthorizeRequest())
		second, err := h.tokens.ExchangeAuthorizationCode(ctx, testClientID, code, testRedirect, "")
		require.NoError(t, err)

		require.NoError(t, h.tokens.RevokeAllForUser(ctx, testUserID))

		_, err = h.tokens.ExchangeRefreshToken(ctx, first.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
		_, err = h.tokens.ExchangeRefreshToken(ctx, second.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidGrant)
	})
}
