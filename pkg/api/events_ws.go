package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"parley/pkg/apperr"
	"parley/pkg/events"
	"parley/pkg/logger"
	"parley/pkg/permissions"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// eventsWS streams realtime frames for the channels named in
// ?channels=a,b,c. The subscription is checked against ViewChannel per
// channel before the upgrade; after that the socket only ever writes.
func (a *API) eventsWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.resolveUser(w, r)
	if !ok {
		return
	}
	topics := splitList(r.URL.Query().Get("channels"))
	if len(topics) == 0 {
		writeError(w, apperr.New(apperr.KindInvalidProperty))
		return
	}
	for _, channelID := range topics {
		ch, err := a.st.FetchChannel(r.Context(), channelID)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := a.perms.Require(r.Context(), actor.User.ID, ch, permissions.ViewChannel); err != nil {
			writeError(w, err)
			return
		}
	}

	conn, err := a.up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		logger.Warn("ws_upgrade_failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	sub := a.bus.Subscribe(topics...)
	logger.Info("ws_connected", "user", actor.User.ID, "channels", len(topics))

	done := make(chan struct{})
	go func() {
		// Drain the read side to process control frames and notice
		// the peer going away. Clients have nothing to say here.
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
		logger.Info("ws_disconnected", "user", actor.User.ID, "dropped", sub.Dropped())
	}()

	for {
		select {
		case pub, ok := <-sub.C():
			if !ok {
				return
			}
			frame, err := events.Marshal(pub.Event)
			if err != nil {
				logger.Error("ws_marshal_failed", "event", pub.Event.Type(), "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
