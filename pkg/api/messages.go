package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"parley/pkg/messages"
	"parley/pkg/permissions"
	"parley/pkg/telemetry"
)

// requireView checks the caller can read the channel. The pipeline
// itself only gates writes, so history reads are enforced here.
func (a *API) requireView(w http.ResponseWriter, r *http.Request, channelID string, actor messages.Actor) bool {
	ch, err := a.st.FetchChannel(r.Context(), channelID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if err := a.perms.Require(r.Context(), actor.User.ID, ch, permissions.ViewChannel); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveActor(w, r)
	if !ok {
		return
	}
	var data messages.SendMessageData
	if !a.decodeJSON(w, r, &data) {
		return
	}
	opts := messages.SendOptions{
		Actor:          actor,
		IdempotencyKey: r.Header.Get(headerIdempotency),
		AllowMentions:  true,
		GenerateEmbeds: true,
	}
	msg, err := a.svc.Send(r.Context(), mux.Vars(r)["channel"], data, opts)
	telemetry.CountOp("send", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	channelID := mux.Vars(r)["channel"]
	if !a.requireView(w, r, channelID, actor) {
		return
	}
	msgs, err := a.svc.ListMessages(r.Context(), channelID, parseListOptions(r))
	telemetry.CountOp("list", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func parseListOptions(r *http.Request) messages.ListOptions {
	q := r.URL.Query()
	opts := messages.ListOptions{Before: q.Get("before"), After: q.Get("after")}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	opts.Ascending = strings.EqualFold(q.Get("sort"), "oldest")
	return opts
}

func (a *API) fetchMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if !a.requireView(w, r, vars["channel"], actor) {
		return
	}
	msg, err := a.svc.FetchMessage(r.Context(), vars["channel"], vars["message"])
	telemetry.CountOp("fetch", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveActor(w, r)
	if !ok {
		return
	}
	var data messages.EditMessageData
	if !a.decodeJSON(w, r, &data) {
		return
	}
	vars := mux.Vars(r)
	msg, err := a.svc.Update(r.Context(), vars["channel"], vars["message"], data, actor)
	telemetry.CountOp("edit", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveActor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := a.svc.Delete(r.Context(), vars["channel"], vars["message"], actor)
	telemetry.CountOp("delete", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) bulkDeleteMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if !a.decodeJSON(w, r, &body) {
		return
	}
	err := a.svc.BulkDelete(r.Context(), mux.Vars(r)["channel"], body.IDs, actor)
	telemetry.CountOp("bulk_delete", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) pinMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := a.svc.Pin(r.Context(), vars["channel"], vars["message"], actor)
	telemetry.CountOp("pin", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) unpinMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := a.svc.Unpin(r.Context(), vars["channel"], vars["message"], actor)
	telemetry.CountOp("unpin", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
