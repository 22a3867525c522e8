package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimsValidation(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	claims := NewAccessClaims("u", "alice", "acme",
		[]string{"Admin"}, []string{"openid", "profile"},
		time.Hour, "https://auth.test", []string{"api"}, now)

	t.Run("issuer", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, claims.ValidateIssuer(""))
		require.NoError(t, claims.ValidateIssuer("https://auth.test"))
		require.ErrorIs(t, claims.ValidateIssuer("https://other.test"), ErrIssuer)
	})

	t.Run("audience", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, claims.ValidateAudience(nil))
		require.NoError(t, claims.ValidateAudience([]string{"api"}))
		require.ErrorIs(t, claims.ValidateAudience([]string{"web"}), ErrAudience)
	})

	t.Run("expiry window", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, claims.ValidateExpiry())

		expired := NewAccessClaims("u", "a", "t", nil, nil, time.Minute,
			"", nil, now.Add(-time.Hour))
		require.ErrorIs(t, expired.ValidateExpiry(), ErrExpired)

		future := NewAccessClaims("u", "a", "t", nil, nil, time.Hour,
			"", nil, now.Add(time.Hour))
		require.ErrorIs(t, future.ValidateExpiry(), ErrNotYetValid)
	})

	t.Run("scope and role lookups", func(t *testing.T) {
		t.Parallel()
		require.True(t, claims.HasScope("openid"))
		require.False(t, claims.HasScope("weather.read"))
		require.True(t, claims.HasRole("Admin"))
		require.False(t, claims.HasRole("User"))
	})
}

func TestJTIUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		jti := NewJTI()
		require.NotEmpty(t, jti)
		require.False(t, seen[jti])
		seen[jti] = true
	}
}
