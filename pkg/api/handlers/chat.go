package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"chatrelay/pkg/relay"
	"chatrelay/pkg/utils"
)

// RegisterChat registers the client-facing chat routes.
func RegisterChat(r *mux.Router) {
	r.HandleFunc("/chat/history", getHistory).Methods(http.MethodGet)
	r.HandleFunc("/chat/send", postSend).Methods(http.MethodPost)
	r.HandleFunc("/chat/edit", postEdit).Methods(http.MethodPost)
	r.HandleFunc("/chat/delete", postDelete).Methods(http.MethodPost)
	r.HandleFunc("/chat/read", postRead).Methods(http.MethodPost)
}

func getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	t, msgs, err := svc.History(id, r.URL.Query().Get("user_id"), limit)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{
		"thread_id": t.ID,
		"messages":  msgs,
	})
}

func postSend(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		UserID        string   `json:"user_id"`
		Body          string   `json:"body"`
		ReplyTo       string   `json:"reply_to"`
		AttachmentIDs []string `json:"attachment_ids"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := svc.Send(id, relay.SendInput{
		TargetClientID: req.UserID,
		Body:           req.Body,
		ReplyTo:        req.ReplyTo,
		AttachmentIDs:  req.AttachmentIDs,
	})
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]interface{}{
		"thread_id": m.Thread,
		"message":   m,
	})
}

func postEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		MessageID string `json:"message_id"`
		Body      string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := svc.Edit(id, req.MessageID, req.Body)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"message": m})
}

func postDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := svc.SoftDelete(id, req.MessageID); err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"deleted": true})
}

func postRead(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		ThreadID string `json:"thread_id"`
		UserID   string `json:"user_id"`
	}
	// body optional for clients
	_ = decode(r, &req)
	updated, err := svc.MarkRead(id, req.ThreadID, req.UserID)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"updated": updated})
}
