package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/pkg/cryptox"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// IdentityProvider resolves resource-owner identities. The server does not
// own user records; it verifies credentials at login and re-resolves the
// full identity (including roles) every time an access token is minted.
type IdentityProvider interface {
	// Authenticate verifies username+password, optionally scoped to a
	// tenant. All failure modes return ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password, tenant string) (domain.User, error)

	// Lookup returns the identity for a user id, or ErrUserNotFound.
	Lookup(ctx context.Context, userID string) (domain.User, error)
}

// StaticIdentityProvider serves a fixed set of users loaded at startup.
// Password hashes are argon2id strings produced by cryptox.HashPassword.
type StaticIdentityProvider struct {
	byID       map[string]domain.User
	byUsername map[string]domain.User
}

func NewStaticIdentityProvider(users []domain.User) *StaticIdentityProvider {
	p := &StaticIdentityProvider{
		byID:       make(map[string]domain.User, len(users)),
		byUsername: make(map[string]domain.User, len(users)),
	}
	for _, u := range users {
		p.byID[u.ID] = u
		p.byUsername[strings.ToLower(u.Username)] = u
	}
	return p
}

func (p *StaticIdentityProvider) Authenticate(ctx context.Context, username, password, tenant string) (domain.User, error) {
	u, ok := p.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		// Burn a hash anyway so unknown and known usernames take
		// comparable time.
		_ = cryptox.VerifyPassword(password, unknownUserHash)
		return domain.User{}, ErrInvalidCredentials
	}
	if tenant != "" && !strings.EqualFold(tenant, u.Tenant) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (p *StaticIdentityProvider) Lookup(ctx context.Context, userID string) (domain.User, error) {
	u, ok := p.byID[userID]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return u, nil
}

// unknownUserHash is a throwaway argon2id hash verified when the username
// does not exist, keeping the failure path's timing close to a real
// mismatch.
const unknownUserHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
