package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Nimbus authorization service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new authorization service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PasswordAuth bundles the inputs for a full authorization-code login.
type PasswordAuth struct {
	// ClientID identifies the registered client on whose behalf tokens are minted
	ClientID string

	// RedirectURI must satisfy the client's registered redirect allow-list
	RedirectURI string

	// Username and Password are the resource owner's credentials
	Username string
	Password string

	// Tenant optionally pins authentication to a single organization
	Tenant string

	// Scopes to request (the client's full allowed set when empty)
	Scopes []string
}

// AuthenticateWithPassword drives the whole authorization-code flow with PKCE:
// it starts an authorization request, completes the login challenge with the
// given credentials, and exchanges the resulting code for tokens.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, auth PasswordAuth) (*Session, error) {
	pkce, err := GeneratePKCEChallenge()
	if err != nil {
		return nil, err
	}

	requestID, err := c.BeginAuthorization(ctx, AuthorizeRequest{
		ClientID:    auth.ClientID,
		RedirectURI: auth.RedirectURI,
		Scopes:      auth.Scopes,
		Tenant:      auth.Tenant,
		PKCE:        pkce,
	})
	if err != nil {
		return nil, err
	}

	code, _, err := c.CompleteLogin(ctx, requestID, auth.Username, auth.Password)
	if err != nil {
		return nil, err
	}

	tokenResp, err := c.ExchangeCodeGrant(ctx, auth.ClientID, code, auth.RedirectURI, pkce.Verifier)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
// The token is rotated immediately, so the caller's copy is spent by this call.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.RefreshGrant(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens.
// This is useful when you already have tokens from a previous authentication
// (e.g., stored in a database or passed from another system).
// The session will still perform auto-refresh when the access token expires.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken, scope string, expiresIn int) *Session {
	expiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	expiresAt = expiresAt.Add(-30 * time.Second) // 30 second buffer

	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
		scopes:       parseScopes(scope),
	}
}
