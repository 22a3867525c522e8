package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client registry management. These endpoints require the Admin role.

// CreateClient registers a new OAuth2 client.
func (s *Session) CreateClient(ctx context.Context, req ClientRequest) (*ClientInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/api/clients",
		bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return nil, err
	}

	var client ClientInfo
	if err := decodeJSON(resp, &client, http.StatusCreated); err != nil {
		return nil, err
	}

	return &client, nil
}

// GetClient fetches a single client registration by id.
func (s *Session) GetClient(ctx context.Context, clientID string) (*ClientInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/clients/"+url.PathEscape(clientID), nil, nil)
	if err != nil {
		return nil, err
	}

	var client ClientInfo
	if err := decodeJSON(resp, &client, http.StatusOK); err != nil {
		return nil, err
	}

	return &client, nil
}

// ListClients fetches all client registrations.
func (s *Session) ListClients(ctx context.Context) ([]ClientInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/api/clients", nil, nil)
	if err != nil {
		return nil, err
	}

	var clients []ClientInfo
	if err := decodeJSON(resp, &clients, http.StatusOK); err != nil {
		return nil, err
	}

	return clients, nil
}

// UpdateClient updates an existing client registration. Fields left empty in
// the request keep their current values.
func (s *Session) UpdateClient(ctx context.Context, clientID string, req ClientRequest) (*ClientInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/api/clients/"+url.PathEscape(clientID),
		bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return nil, err
	}

	var client ClientInfo
	if err := decodeJSON(resp, &client, http.StatusOK); err != nil {
		return nil, err
	}

	return &client, nil
}

// DeleteClient removes a client registration.
func (s *Session) DeleteClient(ctx context.Context, clientID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/api/clients/"+url.PathEscape(clientID), nil, nil)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
