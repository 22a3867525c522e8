package http

import (
	"net/http"

	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
)

// UserInfoHandler echoes the identity carried by the presented bearer
// token. Everything comes straight from the verified claims; no storage is
// consulted.
type UserInfoHandler struct{}

// UserInfoResponse is the JSON body of GET /oauth/userinfo.
type UserInfoResponse struct {
	Subject  string   `json:"sub"`
	Username string   `json:"name,omitempty"`
	Tenant   string   `json:"tenant,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		oauthx.ErrInvalidToken.Write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, UserInfoResponse{
		Subject:  claims.Subject,
		Username: claims.Name,
		Tenant:   claims.Tenant,
		Roles:    claims.Roles,
		Scopes:   claims.Scopes,
	})
}
