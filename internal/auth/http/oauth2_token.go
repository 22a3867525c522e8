package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// TokenHandler serves POST /oauth/token. Accepts
// application/x-www-form-urlencoded per RFC 6749.
type TokenHandler struct {
	TokenService *service.TokenService
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.Write(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	default:
		oauthx.ErrUnsupportedGrantType.Write(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()

	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	clientID := strings.TrimSpace(form.Get("client_id"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))

	if code == "" || redirectURI == "" {
		oauthx.ErrInvalidRequest.Write(w)
		return
	}

	pair, err := h.TokenService.ExchangeAuthorizationCode(ctx, clientID, code, redirectURI, codeVerifier)
	if err != nil {
		writeGrantError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()

	refresh := form.Get("refresh_token")
	if refresh == "" {
		oauthx.ErrInvalidRequest.Write(w)
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, refresh)
	if err != nil {
		writeGrantError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func writeGrantError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidGrant):
		oauthx.ErrInvalidGrant.Write(w)
	case errors.Is(err, service.ErrInvalidClient):
		oauthx.ErrInvalidClient.Write(w)
	case errors.Is(err, service.ErrInvalidScope):
		oauthx.ErrInvalidScope.Write(w)
	case errors.Is(err, service.ErrInvalidRequest):
		oauthx.ErrInvalidRequest.Write(w)
	default:
		slogx.FromContext(r.Context()).Error("token grant failed", "err", err)
		oauthx.ErrServerError.Write(w)
	}
}
