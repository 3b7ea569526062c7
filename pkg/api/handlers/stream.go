package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/utils"
)

const (
	streamBufSize  = 32
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 75 * time.Second
)

// origin policy is enforced by the gateway before the upgrade
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterStream registers the websocket event stream.
func RegisterStream(r *mux.Router) {
	r.HandleFunc("/chat/stream", getStream).Methods(http.MethodGet)
}

// getStream upgrades to a websocket and relays thread-scoped events
// (message/edit/delete/read/presence) to the caller. Clients stream their
// own thread; the admin streams any client's via ?user_id=.
func getStream(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var target string
	if id.Role == models.RoleAdmin {
		target = r.URL.Query().Get("user_id")
	}
	t, err := svc.ResolveThread(id, target)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "thread", t.ID, "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := svc.Bus.Subscribe(t.ID, streamBufSize)
	defer unsubscribe()
	logger.Debug("ws_stream_opened", "thread", t.ID, "role", string(id.Role))

	// read pump exists only to surface close/pong; inbound frames are
	// ignored, sends go through the HTTP surface
	done := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
