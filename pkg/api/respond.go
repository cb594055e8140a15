package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"parley/pkg/apperr"
	"parley/pkg/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError renders the taxonomy error shape. Anything outside the
// taxonomy is treated as internal; causes never leak onto the wire.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.KindInternalError, err)
	}
	if ae.Kind == apperr.KindInternalError {
		logger.Error("request_failed", "error", err)
		ae = apperr.New(apperr.KindInternalError)
	}
	writeJSON(w, apperr.HTTPStatus(ae.Kind), ae)
}

// decodeJSON reads a request body capped by the configured size.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(a.cfg.Server.MaxBody))
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperr.New(apperr.KindInvalidProperty))
		return false
	}
	return true
}
