package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// AuthorizeHandler serves the front half of the authorization-code flow:
// GET /oauth/authorize validates the request and parks it, POST /oauth/login
// completes it with credentials.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
}

// LoginResponse is returned on successful login completion. The caller is
// responsible for following the redirect.
type LoginResponse struct {
	RedirectURI string `json:"redirect_uri"`
}

// HandleAuthorize validates an authorization request. On success the user
// agent is redirected to the login page carrying the pending request
// handle; every validation failure is a structured OAuth error, never a
// redirect to the untrusted target.
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req := service.AuthorizeRequest{
		ClientID:            strings.TrimSpace(q.Get("client_id")),
		RedirectURI:         strings.TrimSpace(q.Get("redirect_uri")),
		ResponseType:        strings.TrimSpace(q.Get("response_type")),
		Scopes:              httpx.ParseSpaceDelimitedFields(q.Get("scope")),
		State:               q.Get("state"),
		Tenant:              strings.TrimSpace(q.Get("tenant")),
		CodeChallenge:       strings.TrimSpace(q.Get("code_challenge")),
		CodeChallengeMethod: strings.TrimSpace(q.Get("code_challenge_method")),
	}

	pending, err := h.AuthorizeService.Authorize(ctx, req)
	if err != nil {
		writeAuthorizeError(w, ctx, err)
		return
	}

	login := url.URL{
		Path:     "/oauth/login",
		RawQuery: url.Values{"request_id": {pending.ID}}.Encode(),
	}
	http.Redirect(w, r, login.String(), http.StatusFound)
}

// HandleLogin completes a pending authorization request with user
// credentials and returns the callback URL carrying the authorization code.
func (h *AuthorizeHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.Write(w)
		return
	}

	requestID := strings.TrimSpace(r.Form.Get("request_id"))
	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")

	if requestID == "" || username == "" || password == "" {
		oauthx.ErrInvalidRequest.Write(w)
		return
	}

	redirect, err := h.AuthorizeService.CompleteLogin(ctx, requestID, username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			oauthx.ErrAccessDenied.WithDescription("invalid username or password").Write(w)
			return
		}
		writeAuthorizeError(w, ctx, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{RedirectURI: redirect})
}

func writeAuthorizeError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		oauthx.ErrInvalidRequest.Write(w)
	case errors.Is(err, service.ErrInvalidClient):
		oauthx.ErrInvalidClient.Write(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthx.ErrInvalidScope.Write(w)
	case errors.Is(err, service.ErrUnsupportedResponseType):
		oauthx.ErrUnsupportedResponseType.Write(w)
	default:
		slogx.FromContext(ctx).Error("authorize request failed", "err", err)
		oauthx.ErrServerError.Write(w)
	}
}
