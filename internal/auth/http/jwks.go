package http

import (
	"net/http"

	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/jwtx"
	"github.com/nimbusops/nimbus/pkg/oauthx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// JWKSHandler publishes the public signing keys so resource servers can
// verify access tokens offline.
func JWKSHandler(keys *jwtx.KeyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := keys.PublicJWKS()
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to load signing keys", "err", err)
			oauthx.ErrServerError.Write(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, jwks)
	}
}
