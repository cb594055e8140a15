package api

import (
	"net/http"

	"parley/pkg/events"
	"parley/pkg/httpx"
)

// BeaconHandler serves the typing indicator endpoint. It is the one
// hot path that skips the full middleware stack: clients fire it on
// every keystroke burst, so it runs engine-neutral (fasthttp or
// net/http per config) and does nothing but publish a frame.
//
//	POST /beacon?channel=<id>&user=<id>[&stop=1]
func BeaconHandler(bus *events.Bus) httpx.HandlerFunc {
	return func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		channel := r.Query("channel")
		user := r.Query("user")
		if channel == "" || user == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if stop := r.Query("stop"); stop == "1" || stop == "true" {
			bus.Publish(channel, events.ChannelStopTyping{ID: channel, User: user})
		} else {
			bus.Publish(channel, events.ChannelStartTyping{ID: channel, User: user})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
