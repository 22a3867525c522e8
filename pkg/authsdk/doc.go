/*
Package authsdk provides a client SDK for the Nimbus authorization service.

# Overview

The authsdk package implements an OAuth2 authorization-code client with PKCE.
It provides unauthenticated operations (via SDKClient) and authenticated
operations (via Session) with automatic token refresh.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: Provides unauthenticated operations and creates authenticated sessions
  - Session: Provides authenticated operations with automatic token refresh

Create an SDKClient to interact with public endpoints and initiate the
authorization flow:

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Fetch the discovery document and signing keys
	doc, err := client.GetOpenIDConfiguration(ctx)
	jwks, err := client.GetJWKS(ctx)

# Authorization Code Flow

The full flow runs in three steps: start an authorization request, complete
the login challenge, then exchange the returned code for tokens. The
AuthenticateWithPassword helper drives all three:

	session, err := client.AuthenticateWithPassword(ctx, authsdk.PasswordAuth{
		ClientID:    "spa-client",
		RedirectURI: "http://localhost:3000/callback",
		Username:    "alice",
		Password:    "password",
		Scopes:      []string{"openid", "profile"},
	})

Each step is also exposed individually for callers that drive the browser
redirect themselves:

	pkce, err := authsdk.GeneratePKCEChallenge()
	requestID, err := client.BeginAuthorization(ctx, authReq)
	code, state, err := client.CompleteLogin(ctx, requestID, username, password)
	tokens, err := client.ExchangeCodeGrant(ctx, clientID, code, redirectURI, pkce.Verifier)

# Sessions

Use a Session for authenticated operations. Sessions refresh the access token
transparently when it expires, consuming the rotated refresh token as they go:

	userInfo, err := session.GetUserInfo(ctx)

	// Client registry management (requires the Admin role)
	created, err := session.CreateClient(ctx, req)
	clients, err := session.ListClients(ctx)

	// Invalidate the session server-side
	err = session.Revoke(ctx)

# Error Handling

API errors are returned as *OAuth2Error carrying the RFC 6749 error code and
the HTTP status:

	tokens, err := client.ExchangeCodeGrant(ctx, clientID, code, redirectURI, verifier)
	var oauthErr *authsdk.OAuth2Error
	if errors.As(err, &oauthErr) && oauthErr.Code == authsdk.ErrorCodeInvalidGrant {
		// code was expired, replayed, or bound to different parameters
	}
*/
package authsdk
