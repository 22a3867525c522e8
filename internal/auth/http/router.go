package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nimbusops/nimbus/internal/auth/service"
	"github.com/nimbusops/nimbus/internal/auth/store"
	"github.com/nimbusops/nimbus/pkg/httpx"
	"github.com/nimbusops/nimbus/pkg/jwtx"
	"github.com/nimbusops/nimbus/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	TokenService     *service.TokenService
	AuthorizeService *service.AuthorizeService
	ClientService    *service.ClientService
}

func NewRouter(
	keys *jwtx.KeyManager,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() error {
	verifier, err := r.keys.Verifier()
	if err != nil {
		return err
	}

	r.registerOAuth2(verifier)
	r.registerClients(verifier)
	r.registerWellKnown()
	r.registerSystem()
	return nil
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2(verifier jwtx.Verifier) {
	authorizeHandler := &AuthorizeHandler{AuthorizeService: r.AuthorizeService}

	// GET /oauth/authorize - validates and parks the request, then sends
	// the user to login. Moderate limit, no credentials involved yet.
	r.Mux.Handle("GET /oauth/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleAuthorize),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /oauth/login - credential submission. Limited by IP plus the
	// username form field to slow brute force against a single account.
	r.Mux.Handle("POST /oauth/login",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	// POST /oauth/token - strict limit by IP across both grant types.
	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /oauth/revoke - moderate limit.
	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /oauth/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /oauth/userinfo - claims echo for the presented bearer token.
	userinfoHandler := &UserInfoHandler{}
	r.Mux.Handle("GET /oauth/userinfo",
		httpx.Chain(userinfoHandler,
			httpx.AuthnMiddleware(verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerClients(verifier jwtx.Verifier) {
	h := &ClientsHandler{ClientService: r.ClientService}

	admin := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(verifier),
			httpx.RequireAnyRole("Admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /api/clients", admin(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("GET /api/clients", admin(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("GET /api/clients/{id}", admin(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PUT /api/clients/{id}", admin(http.HandlerFunc(h.HandleUpdate)))
	r.Mux.Handle("DELETE /api/clients/{id}", admin(http.HandlerFunc(h.HandleDelete)))
}

func (r *Router) registerWellKnown() {
	// Public discovery documents get a high limit; they are cheap reads.
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys))
}
