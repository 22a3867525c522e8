package domain

import "time"

// AuthorizationCode is a single-use grant minted at login completion. The
// plaintext code never touches storage; CodeHash is its fingerprint.
type AuthorizationCode struct {
	ID                  string
	CodeHash            string
	ClientID            string
	UserID              string
	Username            string
	Tenant              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// Expired reports whether the code is past its lifetime at the given instant.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
