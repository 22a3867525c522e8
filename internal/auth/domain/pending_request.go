package domain

import "time"

// PendingAuthRequest is the validated state of an authorization request
// awaiting login completion. It is addressed by its ID handle, never by
// ambient session state, and is deleted once a code is issued.
type PendingAuthRequest struct {
	ID                  string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	Tenant              string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// Expired reports whether the login window for this request has closed.
func (p PendingAuthRequest) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
