package domain

// User is an authenticated identity as reported by the identity provider.
// The server never owns user records; it only consumes them when minting
// tokens.
type User struct {
	ID           string
	Username     string
	Tenant       string
	Roles        []string
	PasswordHash string
}
