package authsdk

import (
	"github.com/nimbusops/nimbus/pkg/jwtx"
)

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses. Client code
// should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from the POST /oauth/token endpoint for both the
// authorization_code and refresh_token grant types.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the opaque refresh token used to obtain new access tokens
	RefreshToken string `json:"refresh_token,omitempty"`

	// RefreshTokenExpiresIn is the lifetime in seconds of the refresh token
	RefreshTokenExpiresIn int `json:"refresh_token_expires_in,omitempty"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// UserInfoResponse represents the /oauth/userinfo endpoint response.
// All fields come straight from the access token's claims.
type UserInfoResponse struct {
	// Subject is the unique identifier for the user
	Subject string `json:"sub"`

	// Username is the user's login username
	Username string `json:"name,omitempty"`

	// Tenant is the organization the user belongs to
	Tenant string `json:"tenant,omitempty"`

	// Roles lists the role names held by the user when the token was minted
	Roles []string `json:"roles,omitempty"`

	// Scopes lists the scopes granted to the access token
	Scopes []string `json:"scopes,omitempty"`
}

// ClientRequest is the request body for creating or updating a client
// registration via the /api/clients endpoints.
type ClientRequest struct {
	// ClientID is the desired client identifier (generated when empty)
	ClientID string `json:"client_id,omitempty"`

	// Name is the human-readable name for the client
	Name string `json:"name"`

	// Description is an optional free-form description
	Description string `json:"description,omitempty"`

	// RedirectURIs is the exact-match allow-list for redirect targets
	RedirectURIs []string `json:"redirect_uris,omitempty"`

	// AllowedScopes is the list of scopes this client may request
	AllowedScopes []string `json:"allowed_scopes,omitempty"`

	// Public marks the client as public (no secret, PKCE expected)
	Public *bool `json:"public,omitempty"`

	// Active toggles whether the client may authorize
	Active *bool `json:"active,omitempty"`
}

// ClientInfo represents a client registration as returned by the registry API.
type ClientInfo struct {
	ClientID      string   `json:"client_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	RedirectURIs  []string `json:"redirect_uris,omitempty"`
	AllowedScopes []string `json:"allowed_scopes"`
	Public        bool     `json:"public"`
	Active        bool     `json:"active"`

	// CreatedAt and UpdatedAt are RFC3339 timestamps
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DiscoveryResponse is the OpenID Provider configuration document served
// at /.well-known/openid-configuration.
type DiscoveryResponse struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
