package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/echorelay/internal/api/apierr"
	"github.com/mcoot/echorelay/internal/api/handler"
	"github.com/mcoot/echorelay/internal/api/middleware"
	"github.com/mcoot/echorelay/internal/api/response"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/relay/peers"
	"github.com/mcoot/echorelay/internal/services/accounts"
	"github.com/mcoot/echorelay/internal/services/registry"
	"github.com/mcoot/echorelay/internal/services/sessions"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	Metrics           *observability.Metrics
	Accounts          *accounts.Controller
	Registry          *registry.Registry
	Sessions          *sessions.Starter
	Peers             *peers.Directory
	PeerHandler       http.Handler
	GameServerHandler http.Handler

	// APIKeyHash is a bcrypt hash of the admin key; empty disables the check
	APIKeyHash string
	RateLimit  float64
	RateBurst  int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	accountHandler := handler.NewAccountHandler(cfg.Accounts)
	sessionHandler := handler.NewSessionHandler(cfg.Registry, cfg.Sessions)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Unauthenticated endpoints
	r.HandleFunc("/health", healthHandler(cfg)).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	// Websocket endpoints for game clients and game servers. The handshake must
	// carry the admin key when one is configured, since logins are not otherwise
	// authenticated and peers receive full profiles.
	relayAuth := middleware.APIKey(cfg.APIKeyHash)
	if cfg.PeerHandler != nil {
		r.Handle("/ws/login", relayAuth(cfg.PeerHandler))
	}
	if cfg.GameServerHandler != nil {
		r.Handle("/ws/serverdb", relayAuth(cfg.GameServerHandler))
	}

	// Admin API
	admin := r.NewRoute().Subrouter()
	admin.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	admin.Use(middleware.APIKey(cfg.APIKeyHash))

	admin.HandleFunc("/accounts", accountHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/accounts", accountHandler.Save).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id}", accountHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/accounts/{id}", accountHandler.Merge).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id}", accountHandler.Delete).Methods(http.MethodDelete)

	admin.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/sessions/{sessionId}", sessionHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/sessions/{sessionId}", sessionHandler.Start).Methods(http.MethodPost)

	return middleware.CORS(r)
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		health := response.Health{Status: "ok"}
		if cfg.Peers != nil {
			health.ConnectedPeers = cfg.Peers.Count()
		}
		if cfg.Registry != nil {
			health.GameServers = cfg.Registry.Count()
		}
		response.JSON(w, http.StatusOK, health)
	}
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	handler.WriteError(w, apierr.NewNotFoundError())
}
