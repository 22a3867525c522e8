package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/domain"
	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// ClientsHandler serves the client registry API under /api/clients.
type ClientsHandler struct {
	ClientService *service.ClientService
}

// ClientRequest is the JSON body for create and update calls.
type ClientRequest struct {
	ClientID      string   `json:"client_id,omitempty"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	RedirectURIs  []string `json:"redirect_uris,omitempty"`
	AllowedScopes []string `json:"allowed_scopes,omitempty"`
	Public        *bool    `json:"public,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

// ClientResponse is the JSON representation of a registration.
type ClientResponse struct {
	ClientID      string    `json:"client_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	RedirectURIs  []string  `json:"redirect_uris,omitempty"`
	AllowedScopes []string  `json:"allowed_scopes"`
	Public        bool      `json:"public"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func clientResponse(c domain.Client) ClientResponse {
	return ClientResponse{
		ClientID:      c.ID,
		Name:          c.Name,
		Description:   c.Description,
		RedirectURIs:  c.RedirectURIs,
		AllowedScopes: c.AllowedScopes,
		Public:        c.Public,
		Active:        c.Active,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (h *ClientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthx.ErrInvalidRequest.WithDescription("malformed JSON body").Write(w)
		return
	}
	if req.Name == "" {
		oauthx.ErrInvalidRequest.WithDescription("name is required").Write(w)
		return
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	created, err := h.ClientService.CreateClient(ctx, domain.Client{
		ID:            req.ClientID,
		Name:          req.Name,
		Description:   req.Description,
		RedirectURIs:  req.RedirectURIs,
		AllowedScopes: req.AllowedScopes,
		Public:        public,
	})
	if err != nil {
		if errors.Is(err, service.ErrClientAlreadyExists) {
			oauthx.New(http.StatusConflict, "client_exists", "a client with this id is already registered").Write(w)
			return
		}
		slogx.FromContext(ctx).Error("client create failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, clientResponse(created))
}

func (h *ClientsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.ClientService.GetClient(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			oauthx.New(http.StatusNotFound, "not_found", "client not found").Write(w)
			return
		}
		slogx.FromContext(r.Context()).Error("client get failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientResponse(c))
}

func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	clients, err := h.ClientService.ListClients(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("client list failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}

	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ClientsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, err := h.ClientService.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			oauthx.New(http.StatusNotFound, "not_found", "client not found").Write(w)
			return
		}
		slogx.FromContext(ctx).Error("client update failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthx.ErrInvalidRequest.WithDescription("malformed JSON body").Write(w)
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.RedirectURIs != nil {
		existing.RedirectURIs = req.RedirectURIs
	}
	if req.AllowedScopes != nil {
		existing.AllowedScopes = req.AllowedScopes
	}
	if req.Public != nil {
		existing.Public = *req.Public
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := h.ClientService.UpdateClient(ctx, existing); err != nil {
		slogx.FromContext(ctx).Error("client update failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}

	updated, err := h.ClientService.GetClient(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Error("client reload failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientResponse(updated))
}

func (h *ClientsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.ClientService.DeleteClient(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			oauthx.New(http.StatusNotFound, "not_found", "client not found").Write(w)
			return
		}
		slogx.FromContext(r.Context()).Error("client delete failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
