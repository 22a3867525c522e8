package service

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/pkg/idx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrClientAlreadyExists = errors.New("client already exists")
)

// DefaultClientScopes are granted to a registration that names none.
var DefaultClientScopes = []string{"openid", "profile", "email"}

// ClientService is the OAuth client registry. Besides CRUD it owns the
// redirect-URI policy decision for a given client, including the
// default-client carve-out.
type ClientService struct {
	Store     store.Store
	Validator *RedirectValidator
}

// CreateClient registers a new client. The id is generated when the caller
// does not assign one, and scopes default to DefaultClientScopes. A caller
// assigned id that already exists fails with ErrClientAlreadyExists.
func (s *ClientService) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	if c.ID == "" {
		c.ID = idx.New().String()
	}
	if len(c.AllowedScopes) == 0 {
		c.AllowedScopes = append([]string(nil), DefaultClientScopes...)
	}
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.Store.Clients().CreateClient(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, ErrClientAlreadyExists
		}
		l.Error("failed to create client", "error", err, "client_id", c.ID)
		return domain.Client{}, err
	}

	l.Info("client registered", "client_id", c.ID, "name", c.Name)
	return c, nil
}

// GetClient returns a client by id.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	c, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, ErrClientNotFound
	}
	return c, err
}

// ListClients returns all registered clients.
func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

// UpdateClient replaces the mutable fields of an existing client.
func (s *ClientService) UpdateClient(ctx context.Context, c domain.Client) error {
	err := s.Store.Clients().UpdateClient(ctx, c)
	if errors.Is(err, store.ErrNotFound) {
		return ErrClientNotFound
	}
	return err
}

// DeleteClient removes a client registration. Tokens already issued to the
// client are unaffected.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	err := s.Store.Clients().DeleteClient(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrClientNotFound
	}
	return err
}

// ValidateRedirect decides whether uri is an acceptable redirect target for
// clientID. The default client is accepted with any well-formed http(s)
// URI, a deliberate backward-compatibility carve-out that skips both the
// host allow-list and registration checks. Every other client must exist,
// be active, have the URI registered, and the URI must pass the host
// validator.
func (s *ClientService) ValidateRedirect(ctx context.Context, clientID, uri string) error {
	if clientID == domain.DefaultClientID {
		if _, err := parseRedirectHost(uri); err != nil {
			return err
		}
		return nil
	}

	c, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	if !c.Active {
		return ErrClientNotFound
	}

	if err := s.Validator.Validate(uri); err != nil {
		return err
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return nil
		}
	}
	return ErrRedirectNotAllowed
}

// SeedDefaults ensures the default client and a sample SPA registration
// exist. Existing rows are left untouched.
func (s *ClientService) SeedDefaults(ctx context.Context) error {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	seeds := []domain.Client{
		{
			ID:            domain.DefaultClientID,
			Name:          "Default Client",
			Description:   "Fallback client accepted for unregistered redirect URIs",
			AllowedScopes: append([]string(nil), DefaultClientScopes...),
			Public:        true,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "spa-client",
			Name:          "Sample SPA",
			Description:   "Single page application example registration",
			RedirectURIs:  []string{"http://localhost:3000/callback"},
			AllowedScopes: append([]string(nil), DefaultClientScopes...),
			Public:        true,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	for _, c := range seeds {
		err := s.Store.Clients().CreateClient(ctx, c)
		switch {
		case err == nil:
			l.Info("seeded client", "client_id", c.ID)
		case errors.Is(err, store.ErrAlreadyExists):
			// Already present from a previous boot.
		default:
			return err
		}
	}
	return nil
}
