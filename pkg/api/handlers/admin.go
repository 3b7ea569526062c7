package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatrelay/pkg/models"
	"chatrelay/pkg/utils"
)

// RegisterAdmin registers the admin console routes. The caller mounts
// these behind the admin-role middleware; the service re-checks the role
// on every operation regardless.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/broadcast", postBroadcast).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/original", getOriginal).Methods(http.MethodGet)
	r.HandleFunc("/clients", getClients).Methods(http.MethodGet)
	r.HandleFunc("/clients/{id}/mute", postMute).Methods(http.MethodPost)
	r.HandleFunc("/notes", getNotes).Methods(http.MethodGet)
	r.HandleFunc("/notes", postNote).Methods(http.MethodPost)
	r.HandleFunc("/notes/{clientID}/{id}", deleteNote).Methods(http.MethodDelete)
	r.HandleFunc("/invite", postInvite).Methods(http.MethodPost)
	r.HandleFunc("/encryption/migrate", postMigrate).Methods(http.MethodPost)

	// admin mirrors of the chat surface, addressed by client id
	r.HandleFunc("/chat/history", getHistory).Methods(http.MethodGet)
	r.HandleFunc("/chat/send", postSend).Methods(http.MethodPost)
	r.HandleFunc("/chat/read", postRead).Methods(http.MethodPost)
}

func postBroadcast(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := svc.Broadcast(id, req.Content)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, res)
}

func getOriginal(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	body, err := svc.ViewOriginal(id, mux.Vars(r)["id"])
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"original_body": body})
}

func getClients(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	threads, err := svc.ClientList(id)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"clients": threads})
}

func postMute(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := svc.SetMuted(id, mux.Vars(r)["id"], req.Muted); err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"muted": req.Muted})
}

func getNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notes, err := svc.ListNotes(id, r.URL.Query().Get("client_id"))
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	if notes == nil {
		notes = []models.ClientNote{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

func postNote(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var n models.ClientNote
	if err := decode(r, &n); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	saved, err := svc.UpsertNote(id, &n)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, saved)
}

func deleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	vars := mux.Vars(r)
	if err := svc.DeleteNote(id, vars["clientID"], vars["id"]); err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"deleted": true})
}

func postInvite(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := svc.Invite(id, req.Email); err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"invited": true})
}

func postMigrate(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	scanned, migrated, err := svc.MigrateEncryption(id)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{
		"scanned":  scanned,
		"migrated": migrated,
	})
}
