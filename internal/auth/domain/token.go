package domain

import "time"

// TokenPair is what the token endpoint returns: a short-lived signed access
// token and an opaque refresh token.
type TokenPair struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Scope                 string `json:"scope,omitempty"`
}

// RefreshToken is the stored refresh token record. Only the fingerprint of
// the issued token is kept. Roles are deliberately absent: they are
// re-resolved from the identity provider on every grant.
type RefreshToken struct {
	ID         string
	TokenHash  string
	UserID     string
	Username   string
	Tenant     string
	ClientID   string
	Scopes     []string
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
	ReplacedBy string // fingerprint of the rotation successor, if any
	CreatedAt  time.Time
}

// Active reports whether the token can still be redeemed at the given
// instant.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
