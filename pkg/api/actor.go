package api

import (
	"net/http"
	"strings"

	"parley/pkg/logger"
	"parley/pkg/messages"
)

// Identity headers for the internal service boundary. The upstream
// gateway owns session auth; by the time a request lands here the
// caller is one of our own services vouching for an actor.
const (
	headerActor       = "X-Parley-Actor"
	headerWebhook     = "X-Parley-Webhook"
	headerIdempotency = "Idempotency-Key"
)

// resolveActor loads the acting identity from headers. On failure it
// writes the 401 and returns ok=false.
func (a *API) resolveActor(w http.ResponseWriter, r *http.Request) (messages.Actor, bool) {
	if hookID := strings.TrimSpace(r.Header.Get(headerWebhook)); hookID != "" {
		hook, err := a.st.FetchWebhook(r.Context(), hookID)
		if err != nil {
			logger.Warn("unknown_webhook", "webhook", hookID, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"unknown webhook"}`, http.StatusUnauthorized)
			return messages.Actor{}, false
		}
		return messages.Actor{Webhook: hook}, true
	}

	userID := strings.TrimSpace(r.Header.Get(headerActor))
	if userID == "" {
		http.Error(w, `{"error":"missing actor"}`, http.StatusUnauthorized)
		return messages.Actor{}, false
	}
	user, err := a.st.FetchUser(r.Context(), userID)
	if err != nil {
		logger.Warn("unknown_actor", "user", userID, "remote", r.RemoteAddr)
		http.Error(w, `{"error":"unknown actor"}`, http.StatusUnauthorized)
		return messages.Actor{}, false
	}
	return messages.Actor{User: user}, true
}

// resolveUser is resolveActor for endpoints webhooks cannot use.
func (a *API) resolveUser(w http.ResponseWriter, r *http.Request) (messages.Actor, bool) {
	actor, ok := a.resolveActor(w, r)
	if !ok {
		return actor, false
	}
	if actor.User == nil {
		http.Error(w, `{"error":"user actor required"}`, http.StatusUnauthorized)
		return messages.Actor{}, false
	}
	return actor, true
}
