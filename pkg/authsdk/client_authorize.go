package authsdk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nimbusops/nimbus/pkg/cryptox"
)

// PKCEChallenge holds the PKCE verifier and challenge pair.
// The verifier is kept secret by the client, and the challenge is sent to the authorization endpoint.
type PKCEChallenge struct {
	// Verifier is the high-entropy cryptographic random string (kept secret)
	Verifier string

	// Challenge is the base64url-encoded SHA256 hash of the verifier (sent to server)
	Challenge string

	// Method is always "S256" for SHA256
	Method string
}

// GeneratePKCEChallenge creates a new PKCE code verifier and challenge pair.
// Uses cryptox.TokenSize256 (256 bits of entropy) and SHA256 hashing per RFC 7636.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	// Compute S256 challenge: BASE64URL(SHA256(verifier))
	hash := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: challenge,
		Method:    "S256",
	}, nil
}

// AuthorizeRequest describes an authorization-code request to /oauth/authorize.
type AuthorizeRequest struct {
	// ClientID identifies the requesting client
	ClientID string

	// RedirectURI is where the code will eventually be delivered
	RedirectURI string

	// Scopes to request (the client's full allowed set when empty)
	Scopes []string

	// State is an opaque value echoed back on the final redirect (CSRF protection)
	State string

	// Tenant optionally hints which organization the login belongs to
	Tenant string

	// PKCE binds the eventual code to a verifier (strongly recommended)
	PKCE *PKCEChallenge
}

func (r AuthorizeRequest) values() url.Values {
	v := url.Values{
		"response_type": {"code"},
		"client_id":     {r.ClientID},
		"redirect_uri":  {r.RedirectURI},
	}
	if len(r.Scopes) > 0 {
		v.Set("scope", strings.Join(r.Scopes, " "))
	}
	if r.State != "" {
		v.Set("state", r.State)
	}
	if r.Tenant != "" {
		v.Set("tenant", r.Tenant)
	}
	if r.PKCE != nil {
		v.Set("code_challenge", r.PKCE.Challenge)
		v.Set("code_challenge_method", r.PKCE.Method)
	}
	return v
}

// BuildAuthorizeURL constructs the authorization URL for a browser-driven flow.
// Redirect the user's browser here to begin authorization; the server answers
// with a redirect to its login challenge.
func (c *SDKClient) BuildAuthorizeURL(req AuthorizeRequest) string {
	return c.url("/oauth/authorize") + "?" + req.values().Encode()
}

// BeginAuthorization starts an authorization request directly, without a
// browser. It returns the pending request handle the login challenge expects.
func (c *SDKClient) BeginAuthorization(ctx context.Context, req AuthorizeRequest) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildAuthorizeURL(req), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// The authorize endpoint answers with a redirect to the login challenge.
	// Capture it instead of following it.
	client := *c.HTTPClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return "", parseErrorResponse(resp, body)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return "", fmt.Errorf("failed to parse login redirect: %w", err)
	}

	requestID := location.Query().Get("request_id")
	if requestID == "" {
		return "", fmt.Errorf("login redirect is missing a request handle")
	}

	return requestID, nil
}

// CompleteLogin answers the login challenge for a pending authorization
// request. On success it returns the one-time authorization code and the
// echoed state extracted from the redirect target.
func (c *SDKClient) CompleteLogin(ctx context.Context, requestID, username, password string) (code, state string, err error) {
	data := url.Values{
		"request_id": {requestID},
		"username":   {username},
		"password":   {password},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/login",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return "", "", err
	}

	var loginResp struct {
		RedirectURI string `json:"redirect_uri"`
	}
	if err := decodeJSON(resp, &loginResp, http.StatusOK); err != nil {
		return "", "", err
	}

	redirect, err := url.Parse(loginResp.RedirectURI)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback redirect: %w", err)
	}

	q := redirect.Query()
	code = q.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback redirect is missing an authorization code")
	}

	return code, q.Get("state"), nil
}
