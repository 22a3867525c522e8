package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/idx"
	"github.com/nimbusops/nimbus/pkg/jwtx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

var (
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// TokenService drives the token endpoint's two grant paths and revocation.
// Access tokens are RS256 JWTs, refresh tokens are opaque strings stored
// only as fingerprints and rotated on every use.
type TokenService struct {
	Store    store.Store
	Keys     *jwtx.KeyManager
	Identity IdentityProvider

	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ExchangeAuthorizationCode implements the authorization_code grant.
//
// The code is consumed before anything about it is validated, so a failed
// exchange burns it. Expired, replayed, mismatched-redirect and
// mismatched-client attempts are all reported as the same ErrInvalidGrant
// so callers cannot distinguish which check failed.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	if code == "" || redirectURI == "" {
		return nil, ErrInvalidGrant
	}

	authCode, err := s.Store.AuthorizationCodes().ConsumeAuthorizationCode(ctx, cryptox.FingerprintToken(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if authCode.Expired(now) {
		return nil, ErrInvalidGrant
	}
	if clientID != "" && authCode.ClientID != clientID {
		return nil, ErrInvalidGrant
	}
	if authCode.RedirectURI != redirectURI {
		l.Info("authorization code exchange redirect mismatch", "client_id", authCode.ClientID)
		return nil, ErrInvalidGrant
	}
	if !verifyCodeVerifier(authCode.CodeChallenge, authCode.CodeChallengeMethod, codeVerifier) {
		return nil, ErrInvalidGrant
	}

	user, err := s.Identity.Lookup(ctx, authCode.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	pair, err := s.issueTokens(ctx, user, authCode.ClientID, authCode.Scopes, now)
	if err != nil {
		return nil, err
	}

	l.Info("authorization code exchanged",
		"client_id", authCode.ClientID,
		"user_id", user.ID,
	)
	return pair, nil
}

// ExchangeRefreshToken implements the refresh_token grant with rotation.
//
// The presented token is revoked and replaced by a successor in a single
// transaction; the revocation is guarded so exactly one of any concurrent
// callers wins, and the loser sees ErrInvalidGrant. Roles on the new access
// token come from a fresh identity lookup, never from the stored record.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	refreshOpaque = strings.TrimSpace(refreshOpaque)
	if refreshOpaque == "" {
		return nil, ErrInvalidGrant
	}
	fp := cryptox.FingerprintToken(refreshOpaque)

	current, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	if !current.Active(now) {
		return nil, ErrInvalidGrant
	}

	user, err := s.Identity.Lookup(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	successorOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	successorFP := cryptox.FingerprintToken(successorOpaque)

	successor := domain.RefreshToken{
		ID:        idx.New().String(),
		TokenHash: successorFP,
		UserID:    current.UserID,
		Username:  current.Username,
		Tenant:    current.Tenant,
		ClientID:  current.ClientID,
		Scopes:    current.Scopes,
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeActiveRefreshToken(ctx, fp, successorFP, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, successor)
	})
	if err != nil {
		return nil, err
	}

	accessToken, err := s.signAccess(user, current.Scopes, now)
	if err != nil {
		return nil, err
	}

	l.Info("refresh token rotated",
		"client_id", current.ClientID,
		"user_id", current.UserID,
	)
	return s.tokenPair(accessToken, successorOpaque, current.Scopes), nil
}

// Revoke implements RFC 7009 semantics for refresh tokens. A wrong hint is
// the only client error; otherwise revocation reports success whether or
// not the token existed, so callers cannot probe for live tokens.
func (s *TokenService) Revoke(ctx context.Context, token, tokenTypeHint string) error {
	if tokenTypeHint != "" && tokenTypeHint != "refresh_token" {
		return ErrInvalidRequest
	}
	if token == "" {
		return nil
	}
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(token), time.Now().UTC())
}

// RevokeAllForUser revokes every active refresh token a user holds.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID, time.Now().UTC())
}

// issueTokens mints an access token plus a fresh refresh token record.
func (s *TokenService) issueTokens(ctx context.Context, user domain.User, clientID string, scopes []string, now time.Time) (*domain.TokenPair, error) {
	accessToken, err := s.signAccess(user, scopes, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	record := domain.RefreshToken{
		ID:        idx.New().String(),
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		UserID:    user.ID,
		Username:  user.Username,
		Tenant:    user.Tenant,
		ClientID:  clientID,
		Scopes:    scopes,
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return s.tokenPair(accessToken, refreshOpaque, scopes), nil
}

func (s *TokenService) signAccess(u domain.User, scopes []string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		u.ID,
		u.Username,
		u.Tenant,
		u.Roles,
		scopes,
		s.accessTTL(),
		s.Issuer,
		s.Audience,
		now,
	)
	signer, err := s.Keys.Signer()
	if err != nil {
		return "", err
	}
	return signer.Sign(claims)
}

func (s *TokenService) tokenPair(accessToken, refreshToken string, scopes []string) *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:           accessToken,
		TokenType:             "Bearer",
		ExpiresIn:             int64(s.accessTTL().Seconds()),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresIn: int64(s.refreshTTL().Seconds()),
		Scope:                 strings.Join(scopes, " "),
	}
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return defaultAccessTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return defaultRefreshTTL
}

// verifyCodeVerifier checks a PKCE verifier against the challenge bound to
// the code. A code issued without a challenge accepts any verifier; a code
// issued with one requires it. Comparisons are constant time.
func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch {
	case strings.EqualFold(method, PKCEMethodPlain):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case method == "" || strings.EqualFold(method, PKCEMethodS256):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
