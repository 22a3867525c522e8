package app

import (
	"fmt"
	"strings"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/pkg/cryptox"
	"github.com/nimbusops/nimbus/pkg/idx"
)

// defaultSeedUsers are the demo accounts loaded when AUTH_SEED_USERS is
// unset. Dev only; real deployments configure their own.
const defaultSeedUsers = "alice:password:acme:Admin|User,bob:password:acme:User"

// buildIdentityProvider parses a seed-user spec of the form
// "username:password:tenant:role|role" (comma separated) into a static
// identity provider. Passwords are hashed at boot.
func buildIdentityProvider(spec string) (*service.StaticIdentityProvider, error) {
	if spec == "" {
		spec = defaultSeedUsers
	}

	var users []domain.User
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed seed user entry %q", entry)
		}

		u := domain.User{
			ID:       idx.New().String(),
			Username: parts[0],
		}
		hash, err := cryptox.HashPassword(parts[1])
		if err != nil {
			return nil, fmt.Errorf("hash seed user password: %w", err)
		}
		u.PasswordHash = hash

		if len(parts) > 2 {
			u.Tenant = parts[2]
		}
		if len(parts) > 3 && parts[3] != "" {
			u.Roles = strings.Split(parts[3], "|")
		}
		users = append(users, u)
	}

	if len(users) == 0 {
		return nil, fmt.Errorf("no seed users configured")
	}
	return service.NewStaticIdentityProvider(users), nil
}
