package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// RevokeHandler serves POST /oauth/revoke per RFC 7009. Only refresh tokens
// are revocable; access tokens expire naturally. Unknown tokens still get
// 200 OK so the endpoint cannot be used to probe for live tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	token := r.Form.Get("token")
	hint := r.Form.Get("token_type_hint")

	if token == "" {
		oauthx.ErrInvalidRequest.Write(w)
		return
	}

	if err := h.TokenService.Revoke(ctx, token, hint); err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			oauthx.ErrInvalidRequest.WithDescription("unsupported token_type_hint").Write(w)
			return
		}
		slogx.FromContext(ctx).Error("revocation failed", "err", err)
		oauthx.ErrServerError.Write(w)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}
