package relay

import (
	"context"
	"fmt"
	"time"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/store"
	"chatrelay/pkg/utils"
	"chatrelay/pkg/validation"
)

// UploadSlot is the reply to an upload request: a reserved attachment row
// plus a pre-signed URL the client PUTs the bytes to directly. The relay
// never proxies file content.
type UploadSlot struct {
	AttachmentID string `json:"attachment_id"`
	UploadURL    string `json:"upload_url"`
	UploadToken  string `json:"upload_token"`
	Key          string `json:"key"`
	ExpiresInSec int64  `json:"expires_in_sec"`
}

// UploadRequest carries client-declared file metadata.
type UploadRequest struct {
	TargetClientID string
	FileName       string
	MimeType       string
	SizeBytes      int64
}

// RequestUpload reserves an attachment slot in the caller's thread and
// signs an upload URL for it. The row is created unlinked; a later send
// claims it.
func (s *Service) RequestUpload(ctx context.Context, ident auth.Identity, req UploadRequest) (*UploadSlot, error) {
	if s.Signer == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrInternal)
	}
	if err := validation.CheckUpload(req.FileName, req.MimeType, req.SizeBytes, s.MaxUpload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	t, err := s.threadFor(ident, req.TargetClientID)
	if err != nil {
		return nil, err
	}

	a := &models.Attachment{
		ID:         utils.GenAttachmentID(),
		Thread:     t.ID,
		UploaderID: ident.ID,
		Role:       ident.Role,
		Bucket:     s.Signer.Bucket(),
		FileName:   validation.SanitizeFileName(req.FileName),
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
		CreatedTS:  now(),
	}
	a.Key = fmt.Sprintf("threads/%s/%s/%s", t.ID, a.ID, a.FileName)

	ttl := s.UploadTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	url, err := s.Signer.SignUpload(ctx, a.Key, a.MimeType, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: sign upload: %v", ErrInternal, err)
	}
	if err := store.SaveAttachment(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.Info("upload_slot_reserved", "thread", t.ID, "attachment", a.ID, "bytes", a.SizeBytes)
	return &UploadSlot{
		AttachmentID: a.ID,
		UploadURL:    url,
		UploadToken:  utils.GenUploadToken(),
		Key:          a.Key,
		ExpiresInSec: int64(ttl / time.Second),
	}, nil
}

// ReadURL signs a short-lived download URL for an attachment. Authority
// flows through thread ownership, so an attachment is readable as soon as
// its row exists even if message linkage is still racing.
func (s *Service) ReadURL(ctx context.Context, ident auth.Identity, attachmentID string) (string, error) {
	if s.Signer == nil {
		return "", fmt.Errorf("%w: file storage is not configured", ErrInternal)
	}
	a, err := store.GetAttachment(attachmentID)
	if err != nil {
		if err == store.ErrNotFound {
			return "", fmt.Errorf("%w: attachment", ErrNotFound)
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if _, err := viewableThread(ident, a.Thread); err != nil {
		return "", err
	}

	ttl := s.ReadTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	url, err := s.Signer.SignRead(ctx, a.Key, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: sign read: %v", ErrInternal, err)
	}
	return url, nil
}
