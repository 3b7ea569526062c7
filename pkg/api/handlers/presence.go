package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatrelay/pkg/utils"
)

// RegisterPresence registers the heartbeat/offline routes.
func RegisterPresence(r *mux.Router) {
	r.HandleFunc("/presence/heartbeat", postHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/presence/offline", postOffline).Methods(http.MethodPost)
}

func postHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	threadID, err := svc.Heartbeat(id)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"ok": true, "thread_id": threadID})
}

func postOffline(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	threadID, err := svc.Offline(id)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"ok": true, "thread_id": threadID})
}
