// Package api exposes the message pipeline over HTTP: message CRUD,
// reactions, a websocket event stream and the typing beacon handler.
// Handlers stay thin; they decode, call the service and encode the
// taxonomy error shape. Identity arrives via headers, this is the
// internal service boundary, not a public session surface.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"parley/pkg/config"
	"parley/pkg/events"
	"parley/pkg/messages"
	"parley/pkg/permissions"
	"parley/pkg/store"
	"parley/pkg/telemetry"
)

// API bundles the collaborators the HTTP surface needs.
type API struct {
	svc   *messages.Service
	st    *store.Store
	perms *permissions.Calculator
	bus   *events.Bus
	cfg   *config.Config

	limiter *limiterPool
	up      websocket.Upgrader
}

// New builds the HTTP surface.
func New(svc *messages.Service, st *store.Store, perms *permissions.Calculator, bus *events.Bus, cfg *config.Config) *API {
	return &API{
		svc:   svc,
		st:    st,
		perms: perms,
		bus:   bus,
		cfg:   cfg,
		limiter: &limiterPool{
			rps:   cfg.Security.RateLimit.RPS,
			burst: cfg.Security.RateLimit.Burst,
		},
		// identity is header-based here, so origin checks add nothing
		up: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Handler returns the routed handler with the middleware stack applied.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.observe, a.recoverPanics, a.rateLimit, telemetry.Middleware)

	ch := r.PathPrefix("/channels/{channel}").Subrouter()
	ch.HandleFunc("/messages", a.sendMessage).Methods(http.MethodPost)
	ch.HandleFunc("/messages", a.listMessages).Methods(http.MethodGet)
	ch.HandleFunc("/messages", a.bulkDeleteMessages).Methods(http.MethodDelete)
	ch.HandleFunc("/messages/{message}", a.fetchMessage).Methods(http.MethodGet)
	ch.HandleFunc("/messages/{message}", a.editMessage).Methods(http.MethodPatch)
	ch.HandleFunc("/messages/{message}", a.deleteMessage).Methods(http.MethodDelete)
	ch.HandleFunc("/messages/{message}/pin", a.pinMessage).Methods(http.MethodPost)
	ch.HandleFunc("/messages/{message}/pin", a.unpinMessage).Methods(http.MethodDelete)
	ch.HandleFunc("/messages/{message}/reactions/{emoji}", a.addReaction).Methods(http.MethodPut)
	ch.HandleFunc("/messages/{message}/reactions/{emoji}", a.removeReaction).Methods(http.MethodDelete)
	ch.HandleFunc("/messages/{message}/reactions", a.clearReactions).Methods(http.MethodDelete)

	r.HandleFunc("/events/ws", a.eventsWS).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	})
	return r
}
