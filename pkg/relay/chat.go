package relay

import (
	"fmt"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/security"
	"chatrelay/pkg/store"
	"chatrelay/pkg/utils"
	"chatrelay/pkg/validation"
)

// appendMessage is swappable in tests to inject storage failures.
var appendMessage = store.AppendMessage

// SendInput carries a new-message request. TargetClientID is only honored
// for the admin; clients always post into their own thread.
type SendInput struct {
	TargetClientID string
	Body           string
	ReplyTo        string
	AttachmentIDs  []string
}

// Send validates, encrypts and appends a message, claims any referenced
// orphan attachments, updates the thread summary and fans the event out.
// The returned message carries the plaintext body for the caller's echo.
func (s *Service) Send(ident auth.Identity, in SendInput) (*models.Message, error) {
	if err := validation.CheckBody(in.Body, len(in.AttachmentIDs) > 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	t, err := s.threadFor(ident, in.TargetClientID)
	if err != nil {
		return nil, err
	}

	sealed, err := security.Seal(in.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	m := &models.Message{
		ID:         utils.GenMessageID(),
		Thread:     t.ID,
		SenderRole: ident.Role,
		Body:       sealed,
		CreatedTS:  now(),
		ReplyTo:    in.ReplyTo,
	}
	if err := appendMessage(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	// claim attachments after the row exists; only unlinked rows in this
	// thread can win
	if len(in.AttachmentIDs) > 0 {
		linked, err := store.LinkAttachments(t.ID, m.ID, in.AttachmentIDs)
		if err != nil {
			logger.Error("attachment_link_failed", "message", m.ID, "error", err)
		}
		if len(linked) > 0 {
			m.AttachmentIDs = linked
			if err := store.UpdateMessage(m); err != nil {
				logger.Error("attachment_persist_failed", "message", m.ID, "error", err)
			}
		}
	}

	preview := validation.Preview(in.Body)
	if err := store.TouchOnSend(t.ID, ident.Role, preview, m.CreatedTS); err != nil {
		logger.Error("thread_touch_failed", "thread", t.ID, "error", err)
	}

	out := *m
	out.Body = in.Body
	if s.Bus != nil {
		s.Bus.Publish(bus.Event{Kind: "message", Thread: t.ID, TS: m.CreatedTS, Message: &out})
	}
	s.Notifier.MessageReceived(t, ident.Role, preview)
	logger.Info("message_sent", "thread", t.ID, "message", m.ID, "role", string(ident.Role))
	return &out, nil
}

// Edit replaces a message body. Only the original sender may edit; deleted
// messages reject the edit. The pre-edit ciphertext is preserved in
// OriginalBody on the first edit only.
func (s *Service) Edit(ident auth.Identity, messageID, newBody string) (*models.Message, error) {
	if err := validation.CheckBody(newBody, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m, t, err := loadOwnedMessage(ident, messageID)
	if err != nil {
		return nil, err
	}
	if m.Deleted() {
		return nil, fmt.Errorf("%w: message is deleted", ErrConflict)
	}

	sealed, err := security.Seal(newBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if m.EditedTS == 0 {
		m.OriginalBody = m.Body
	}
	m.Body = sealed
	m.EditedTS = now()
	if err := store.UpdateMessage(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	out := *m
	out.Body = newBody
	out.OriginalBody = ""
	if s.Bus != nil {
		s.Bus.Publish(bus.Event{Kind: "edit", Thread: t.ID, TS: m.EditedTS, Message: &out})
	}
	logger.AuditEvent("message_edited", "message", m.ID, "thread", t.ID, "editor", ident.ID)
	return &out, nil
}

// SoftDelete tombstones a message. Idempotent: deleting an already deleted
// message succeeds and keeps the original DeletedTS. The stored body is
// retained for the audit trail.
func (s *Service) SoftDelete(ident auth.Identity, messageID string) error {
	m, t, err := loadOwnedMessage(ident, messageID)
	if err != nil {
		return err
	}
	if m.Deleted() {
		return nil
	}
	m.DeletedTS = now()
	if err := store.UpdateMessage(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if s.Bus != nil {
		tomb := *m
		tomb.Body = models.TombstoneBody
		tomb.OriginalBody = ""
		s.Bus.Publish(bus.Event{Kind: "delete", Thread: t.ID, TS: m.DeletedTS, Message: &tomb})
	}
	logger.AuditEvent("message_deleted", "message", m.ID, "thread", t.ID, "actor", ident.ID)
	return nil
}

// History returns the caller's view of a thread. Fetching history is the
// read-receipt trigger: counter-party messages are marked delivered (and
// read, for client readers) and the reader's unread flag clears.
//
// Clients always read their own thread and get it created on first call;
// the admin names the client and gets NotFound for a client with no
// thread yet.
func (s *Service) History(ident auth.Identity, targetClientID string, limit int) (*models.Thread, []models.Message, error) {
	var t *models.Thread
	var err error
	if ident.Role == models.RoleClient {
		t, err = s.ownThread(ident)
	} else {
		if targetClientID == "" {
			return nil, nil, fmt.Errorf("%w: user_id is required", ErrValidation)
		}
		t, err = store.GetThreadByClient(targetClientID)
		if err == store.ErrNotFound {
			return nil, nil, fmt.Errorf("%w: no thread for client", ErrNotFound)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	msgs, err := store.ListMessages(t.ID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	for i := range msgs {
		m := &msgs[i]
		if m.Deleted() {
			m.Body = models.TombstoneBody
		} else {
			m.Body = security.OpenOrPlaceholder(m.Body)
		}
		m.OriginalBody = ""
	}

	ts := now()
	if _, err := store.ApplyReadReceipts(t.ID, ident.Role, ts); err != nil {
		logger.Warn("read_receipts_failed", "thread", t.ID, "error", err)
	}
	if err := store.ClearUnread(t.ID, ident.Role); err != nil {
		logger.Warn("clear_unread_failed", "thread", t.ID, "error", err)
	}
	if s.Bus != nil {
		s.Bus.Publish(bus.Event{Kind: "read", Thread: t.ID, TS: ts})
	}
	return t, msgs, nil
}

// MarkRead applies read receipts without fetching history and reports how
// many rows changed. The thread may be named directly by ID, or resolved
// from the caller (clients) or the target client (admin).
func (s *Service) MarkRead(ident auth.Identity, threadID, targetClientID string) (int, error) {
	var t *models.Thread
	var err error
	if threadID != "" {
		t, err = viewableThread(ident, threadID)
	} else {
		t, err = s.threadFor(ident, targetClientID)
	}
	if err != nil {
		return 0, err
	}
	ts := now()
	updated, err := store.ApplyReadReceipts(t.ID, ident.Role, ts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := store.ClearUnread(t.ID, ident.Role); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if s.Bus != nil {
		s.Bus.Publish(bus.Event{Kind: "read", Thread: t.ID, TS: ts})
	}
	return updated, nil
}

// ViewOriginal returns the pre-edit plaintext of an edited message, or the
// stored body of a never-edited one. Admin only; the stored ciphertext
// outlives soft deletion so the audit trail can always recover the content.
func (s *Service) ViewOriginal(ident auth.Identity, messageID string) (string, error) {
	if ident.Role != models.RoleAdmin {
		return "", fmt.Errorf("%w: admin only", ErrForbidden)
	}
	m, err := store.GetMessage(messageID)
	if err != nil {
		if err == store.ErrNotFound {
			return "", fmt.Errorf("%w: message", ErrNotFound)
		}
		return "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	body := m.Body
	if m.EditedTS != 0 {
		body = m.OriginalBody
	}
	logger.AuditEvent("original_viewed", "message", m.ID, "admin", ident.ID)
	return security.OpenOrPlaceholder(body), nil
}
