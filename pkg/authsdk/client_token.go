package authsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ExchangeCodeGrant redeems a one-time authorization code for tokens.
// The redirectURI and codeVerifier must match the values bound to the code
// at authorization time; a mismatch burns the code permanently.
func (c *SDKClient) ExchangeCodeGrant(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if clientID != "" {
		data.Set("client_id", clientID)
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	return c.requestToken(ctx, data)
}

// RefreshGrant requests new tokens using a refresh token.
// The presented token is consumed: the response carries its replacement.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return c.requestToken(ctx, data)
}

// RevokeToken revokes a refresh token per RFC 7009.
// Revoking an unknown or already-revoked token is not an error.
func (c *SDKClient) RevokeToken(ctx context.Context, refreshToken string) error {
	data := url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/revoke",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return parseErrorResponse(resp, body)
}

// requestToken posts form data to the token endpoint and decodes the response.
func (c *SDKClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth/token",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}
