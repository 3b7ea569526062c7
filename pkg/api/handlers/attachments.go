package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatrelay/pkg/relay"
	"chatrelay/pkg/utils"
)

// RegisterAttachments registers the upload/read URL routes.
func RegisterAttachments(r *mux.Router) {
	r.HandleFunc("/attachments/upload-url", postUploadURL).Methods(http.MethodPost)
	r.HandleFunc("/attachments/read-url", postReadURL).Methods(http.MethodPost)
}

func postUploadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		UserID    string `json:"user_id"`
		FileName  string `json:"file_name"`
		MimeType  string `json:"mime_type"`
		SizeBytes int64  `json:"size_bytes"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	slot, err := svc.RequestUpload(r.Context(), id, relay.UploadRequest{
		TargetClientID: req.UserID,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		SizeBytes:      req.SizeBytes,
	})
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, slot)
}

func postReadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := ident(r)
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		AttachmentID string `json:"attachment_id"`
	}
	if err := decode(r, &req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	url, err := svc.ReadURL(r.Context(), id, req.AttachmentID)
	if err != nil {
		writeRelayError(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"url": url})
}
