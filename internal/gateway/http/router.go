package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/service"
	"github.com/adminbridge/authgate/internal/gateway/store"
	"github.com/adminbridge/authgate/pkg/httpx"
	"github.com/adminbridge/authgate/pkg/jwtx"
	"github.com/adminbridge/authgate/pkg/slogx"

	_ "github.com/adminbridge/authgate/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	ExchangeService *service.ExchangeService
	SessionService  *service.SessionService
	TokenCache      *service.TokenCache
	AuditService    *service.AuditService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AdminBridge Authentication Gateway API
//	@version		0.1.0
//	@description	OAuth2 relying party for the admin console. Drives the
//	@description	authorization-code flow with PKCE against the upstream identity
//	@description	provider and issues its own signed session tokens.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	hook := r.AuditService.AuthEventHook()

	// Login works with or without a session; a recognized caller gets a
	// rate-limit budget of their own instead of sharing the IP's.
	loginHandler := &LoginHandler{ExchangeService: r.ExchangeService}
	r.Mux.Handle("GET /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.OptionalAuthnMiddleware(r.verifier),
			httpx.RateLimitByPrincipal(httpx.LenientLimit, hook),
		),
	)

	// Both callback shapes land on the same exchange path. Strict limits:
	// each request burns an authorization code upstream.
	callbackHandler := &CallbackHandler{
		ExchangeService: r.ExchangeService,
		SessionService:  r.SessionService,
		TokenCache:      r.TokenCache,
		AuditService:    r.AuditService,
	}
	r.Mux.Handle("GET /v1/auth/callback",
		httpx.Chain(http.HandlerFunc(callbackHandler.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit, hook),
		),
	)
	r.Mux.Handle("POST /v1/auth/token",
		httpx.Chain(http.HandlerFunc(callbackHandler.HandleToken),
			httpx.RateLimitByIP(httpx.StrictLimit, hook),
		),
	)

	refreshHandler := &RefreshHandler{
		SessionService: r.SessionService,
		TokenCache:     r.TokenCache,
	}
	// Strict and IP-keyed outside authentication so floods of missing or
	// invalid tokens are counted, not just bounced by verification.
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit, hook),
			httpx.AuthnMiddleware(r.verifier, hook),
		),
	)

	logoutHandler := &LogoutHandler{
		TokenCache:   r.TokenCache,
		AuditService: r.AuditService,
	}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.AuthnMiddleware(r.verifier, hook),
			httpx.RateLimitByPrincipal(httpx.LenientLimit, hook),
		),
	)

	// Status needs a verifiable token: a missing, malformed, expired, or
	// tampered one answers 401 with the specific failure code.
	statusHandler := &StatusHandler{}
	r.Mux.Handle("GET /v1/auth/status",
		httpx.Chain(statusHandler,
			httpx.AuthnMiddleware(r.verifier, hook),
			httpx.RateLimitByPrincipal(httpx.LenientLimit, hook),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit, hook),
		),
	)
}

func (r *Router) registerAdmin() {
	hook := r.AuditService.AuthEventHook()

	auditHandler := &AuditHandler{AuditService: r.AuditService}
	r.Mux.Handle("GET /v1/admin/audit",
		httpx.Chain(auditHandler,
			httpx.AuthnMiddleware(r.verifier, hook),
			httpx.RequireAnyRole(hook, httpx.RoleAdministrator),
			httpx.RateLimitByPrincipal(httpx.LenientLimit, hook),
		),
	)
}

func (r *Router) registerSystem() {
	hook := r.AuditService.AuthEventHook()

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit, hook),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit, hook),
		),
	)
}
