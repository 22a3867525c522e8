package domain

import "time"

// DefaultClientID names the registry's validation carve-out client. Requests
// for it accept any syntactically valid redirect URI, which keeps local
// development tools working without registering every callback.
const DefaultClientID = "default-client"

// Client is a registered OAuth client application.
type Client struct {
	ID            string
	Name          string
	Description   string
	RedirectURIs  []string
	AllowedScopes []string
	Public        bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
