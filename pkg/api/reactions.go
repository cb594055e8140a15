package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"parley/pkg/telemetry"
)

func (a *API) addReaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := a.svc.AddReaction(r.Context(), vars["channel"], vars["message"], vars["emoji"], actor.User.ID)
	telemetry.CountOp("react", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeReaction removes one user's reaction. ?user_id targets another
// reactor (moderators only), ?remove_all=1 drops the whole key.
func (a *API) removeReaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	q := r.URL.Query()

	var err error
	if v := q.Get("remove_all"); v == "1" || v == "true" {
		err = a.svc.ClearReaction(r.Context(), vars["channel"], vars["message"], vars["emoji"], actor)
		telemetry.CountOp("clear_reaction", err)
	} else {
		target := q.Get("user_id")
		if target == "" {
			target = actor.User.ID
		}
		err = a.svc.RemoveReaction(r.Context(), vars["channel"], vars["message"], vars["emoji"], target, actor)
		telemetry.CountOp("unreact", err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) clearReactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	err := a.svc.ClearReactions(r.Context(), vars["channel"], vars["message"], actor)
	telemetry.CountOp("clear_reactions", err)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
