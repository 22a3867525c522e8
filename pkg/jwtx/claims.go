package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nimbusops/nimbus/pkg/idx"
)

// Claims are the access-token claims minted by the server. Roles and scopes
// are carried as explicit string arrays, one entry per role and per scope.
type Claims struct {
	jwt.RegisteredClaims

	// Name is the username of the authenticated user.
	Name string `json:"name,omitempty"`

	// Tenant the user belongs to.
	Tenant string `json:"tenant,omitempty"`

	// Roles granted to the user. Never sourced from stored tokens, always
	// re-resolved from the identity provider at mint time.
	Roles []string `json:"roles,omitempty"`

	// Scopes granted to this token.
	Scopes []string `json:"scopes,omitempty"`
}

// NewAccessClaims builds claims for a freshly minted access token. The jti
// is a fresh ULID per token.
func NewAccessClaims(
	subject, name, tenant string,
	roles, scopes []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Name:   name,
		Tenant: tenant,
		Roles:  roles,
		Scopes: scopes,
	}
}

// NewJTI returns a unique identifier for the "jti" claim.
func NewJTI() string {
	return idx.New().String()
}

// HasScope reports whether the token grants the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// HasRole reports whether the token carries the given role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ValidateIssuer checks the issuer claim against the expected value.
// An empty expectation enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that at least one expected audience is present.
// An empty expectation enforces nothing.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token is within its exp/nbf window.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
