package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/idx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
)

// PKCE challenge methods accepted at the authorize endpoint. When a
// challenge arrives without a method, S256 is assumed.
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

const (
	defaultCodeTTL  = 10 * time.Minute
	defaultLoginTTL = 10 * time.Minute
)

// AuthorizeRequest carries the query parameters of an authorize call after
// HTTP decoding.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scopes              []string
	State               string
	Tenant              string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeService drives the front half of the authorization-code flow:
// it validates the incoming request, parks it as a pending request keyed by
// an opaque handle, and later turns a successful login into a single-use
// authorization code.
type AuthorizeService struct {
	Store    store.Store
	Clients  *ClientService
	Identity IdentityProvider

	// CodeTTL bounds the life of an issued authorization code. LoginTTL
	// bounds how long a pending request waits for the user to log in.
	// Zero values fall back to ten minutes each.
	CodeTTL  time.Duration
	LoginTTL time.Duration
}

// Authorize validates an authorization request and persists it as a
// PendingAuthRequest. Checks short-circuit on the first failure: parameter
// presence, response type, client, redirect URI, scopes, then PKCE. No
// transient state is written unless every check passes.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (domain.PendingAuthRequest, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	if req.ClientID == "" || req.RedirectURI == "" {
		return domain.PendingAuthRequest{}, ErrInvalidRequest
	}
	if req.ResponseType == "" {
		return domain.PendingAuthRequest{}, ErrInvalidRequest
	}
	if req.ResponseType != "code" {
		return domain.PendingAuthRequest{}, ErrUnsupportedResponseType
	}

	allowedScopes, err := s.resolveAllowedScopes(ctx, req.ClientID)
	if err != nil {
		return domain.PendingAuthRequest{}, err
	}

	if err := s.Clients.ValidateRedirect(ctx, req.ClientID, req.RedirectURI); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return domain.PendingAuthRequest{}, ErrInvalidClient
		}
		if errors.Is(err, ErrRedirectNotAllowed) {
			return domain.PendingAuthRequest{}, ErrInvalidRequest
		}
		return domain.PendingAuthRequest{}, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = allowedScopes
	} else if !subsetOf(scopes, allowedScopes) {
		return domain.PendingAuthRequest{}, ErrInvalidScope
	}

	challenge, method, err := normalizePKCE(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return domain.PendingAuthRequest{}, err
	}

	ttl := s.LoginTTL
	if ttl <= 0 {
		ttl = defaultLoginTTL
	}

	pending := domain.PendingAuthRequest{
		ID:                  idx.New().String(),
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scopes:              scopes,
		State:               req.State,
		Tenant:              req.Tenant,
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		ExpiresAt:           now.Add(ttl),
		CreatedAt:           now,
	}

	if err := s.Store.PendingAuthRequests().CreatePendingAuthRequest(ctx, pending); err != nil {
		l.Error("failed to persist pending authorization request", "error", err)
		return domain.PendingAuthRequest{}, err
	}

	l.Info("authorization request pending login",
		"request_id", pending.ID,
		"client_id", pending.ClientID,
	)
	return pending, nil
}

// CompleteLogin exchanges user credentials for an authorization code bound
// to a pending request. On success the pending request is deleted and the
// returned URL carries the code plus the original state. Bad credentials
// leave the pending request in place so the user can retry until the
// handle expires. The redirect URI is validated a second time here because
// the client registration may have changed since the authorize call.
func (s *AuthorizeService) CompleteLogin(ctx context.Context, requestID, username, password string) (string, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	pending, err := s.Store.PendingAuthRequests().GetPendingAuthRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidRequest
		}
		return "", err
	}
	if pending.Expired(now) {
		_ = s.Store.PendingAuthRequests().DeletePendingAuthRequest(ctx, requestID)
		return "", ErrInvalidRequest
	}

	user, err := s.Identity.Authenticate(ctx, username, password, pending.Tenant)
	if err != nil {
		l.Info("login failed",
			"request_id", requestID,
			"username", username,
		)
		return "", ErrInvalidCredentials
	}

	if err := s.Clients.ValidateRedirect(ctx, pending.ClientID, pending.RedirectURI); err != nil {
		return "", ErrInvalidRequest
	}

	code, err := s.issueCode(ctx, pending, user, now)
	if err != nil {
		return "", err
	}

	if err := s.Store.PendingAuthRequests().DeletePendingAuthRequest(ctx, requestID); err != nil {
		l.Warn("failed to delete pending authorization request", "error", err, "request_id", requestID)
	}

	redirect, err := url.Parse(pending.RedirectURI)
	if err != nil {
		return "", ErrInvalidRequest
	}
	q := redirect.Query()
	q.Set("code", code)
	if pending.State != "" {
		q.Set("state", pending.State)
	}
	redirect.RawQuery = q.Encode()

	l.Info("authorization code issued",
		"client_id", pending.ClientID,
		"user_id", user.ID,
	)
	return redirect.String(), nil
}

// issueCode mints the opaque code and stores its fingerprint with the
// bindings the token endpoint will verify.
func (s *AuthorizeService) issueCode(ctx context.Context, pending domain.PendingAuthRequest, user domain.User, now time.Time) (string, error) {
	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}

	record := domain.AuthorizationCode{
		ID:                  idx.New().String(),
		CodeHash:            cryptox.FingerprintToken(code),
		ClientID:            pending.ClientID,
		UserID:              user.ID,
		Username:            user.Username,
		Tenant:              user.Tenant,
		RedirectURI:         pending.RedirectURI,
		Scopes:              pending.Scopes,
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		ExpiresAt:           now.Add(ttl),
		CreatedAt:           now,
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return "", err
	}
	return code, nil
}

// resolveAllowedScopes returns the scope ceiling for a client. The default
// client may be unregistered, in which case the standard scopes apply.
func (s *AuthorizeService) resolveAllowedScopes(ctx context.Context, clientID string) ([]string, error) {
	c, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			if clientID == domain.DefaultClientID {
				return DefaultClientScopes, nil
			}
			return nil, ErrInvalidClient
		}
		return nil, err
	}
	if !c.Active {
		return nil, ErrInvalidClient
	}
	return c.AllowedScopes, nil
}

// normalizePKCE validates the challenge parameters. A method without a
// challenge is malformed, a challenge without a method defaults to S256 and
// unknown methods are rejected.
func normalizePKCE(challenge, method string) (string, string, error) {
	challenge = strings.TrimSpace(challenge)
	method = strings.TrimSpace(method)

	if challenge == "" {
		if method != "" {
			return "", "", ErrInvalidRequest
		}
		return "", "", nil
	}

	switch {
	case method == "" || strings.EqualFold(method, PKCEMethodS256):
		return challenge, PKCEMethodS256, nil
	case strings.EqualFold(method, PKCEMethodPlain):
		return challenge, PKCEMethodPlain, nil
	default:
		return "", "", ErrInvalidRequest
	}
}

func subsetOf(requested, allowed []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
