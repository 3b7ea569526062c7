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

// BroadcastPrefix is prepended to every fanned-out broadcast body so
// clients can render announcements distinctly.
const BroadcastPrefix = "[Announcement] "

// BroadcastResult reports a fan-out's partial outcome. Errors holds one
// entry per failed thread; a non-empty list with Sent > 0 is partial
// success, not failure.
type BroadcastResult struct {
	Sent         int      `json:"sent"`
	TotalThreads int      `json:"total_threads"`
	Errors       []string `json:"errors,omitempty"`
}

// Broadcast inserts one admin-authored announcement into every thread
// existing at call time. Per-thread failures are collected and the loop
// continues; threads created after enumeration are not covered.
func (s *Service) Broadcast(ident auth.Identity, content string) (*BroadcastResult, error) {
	if ident.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if err := validation.CheckBody(content, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	threads, err := store.ListThreads()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	body := BroadcastPrefix + content
	preview := validation.Preview(body)
	res := &BroadcastResult{TotalThreads: len(threads)}
	for i := range threads {
		t := &threads[i]
		sealed, err := security.Seal(body)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", t.ID, err))
			continue
		}
		m := &models.Message{
			ID:         utils.GenMessageID(),
			Thread:     t.ID,
			SenderRole: models.RoleAdmin,
			Body:       sealed,
			CreatedTS:  now(),
		}
		if err := appendMessage(m); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", t.ID, err))
			continue
		}
		if err := store.TouchOnSend(t.ID, models.RoleAdmin, preview, m.CreatedTS); err != nil {
			logger.Warn("broadcast_touch_failed", "thread", t.ID, "error", err)
		}
		if s.Bus != nil {
			out := *m
			out.Body = body
			s.Bus.Publish(bus.Event{Kind: "message", Thread: t.ID, TS: m.CreatedTS, Message: &out})
		}
		res.Sent++
	}
	logger.AuditEvent("broadcast_sent", "admin", ident.ID, "sent", res.Sent, "total", res.TotalThreads, "failed", len(res.Errors))
	return res, nil
}

// ClientList returns every thread summary, for the admin inbox.
func (s *Service) ClientList(ident auth.Identity) ([]models.Thread, error) {
	if ident.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	threads, err := store.ListThreads()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return threads, nil
}

// SetMuted toggles notification muting for a client's thread.
func (s *Service) SetMuted(ident auth.Identity, clientID string, muted bool) error {
	if ident.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	t, err := store.GetThreadByClient(clientID)
	if err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("%w: no thread for client", ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	t.NotificationsMuted = muted
	if err := store.SaveThread(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.AuditEvent("thread_mute_set", "thread", t.ID, "muted", muted, "admin", ident.ID)
	return nil
}

// ListNotes returns notes for one client, or all notes when clientID is
// empty.
func (s *Service) ListNotes(ident auth.Identity, clientID string) ([]models.ClientNote, error) {
	if ident.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	notes, err := store.ListNotes(clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return notes, nil
}

// UpsertNote creates or updates a client note. Audit logging is
// best-effort and never fails the write.
func (s *Service) UpsertNote(ident auth.Identity, n *models.ClientNote) (*models.ClientNote, error) {
	if ident.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if n.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrValidation)
	}
	if err := validation.CheckBody(n.Body, false); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	ts := now()
	if n.ID == "" {
		n.ID = utils.GenNoteID()
		n.CreatedTS = ts
	} else {
		prev, err := store.GetNote(n.ClientID, n.ID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, fmt.Errorf("%w: note", ErrNotFound)
			}
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		n.CreatedTS = prev.CreatedTS
		n.UpdatedTS = ts
	}
	if err := store.UpsertNote(n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.AuditEvent("note_upserted", "note", n.ID, "client", n.ClientID, "admin", ident.ID)
	return n, nil
}

// DeleteNote removes a client note. Missing notes delete cleanly.
func (s *Service) DeleteNote(ident auth.Identity, clientID, noteID string) error {
	if ident.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if clientID == "" || noteID == "" {
		return fmt.Errorf("%w: client_id and note_id are required", ErrValidation)
	}
	if err := store.DeleteNote(clientID, noteID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.AuditEvent("note_deleted", "note", noteID, "client", clientID, "admin", ident.ID)
	return nil
}

// Invite emails a signup invite to a prospective client.
func (s *Service) Invite(ident auth.Identity, email string) error {
	if ident.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admin only", ErrForbidden)
	}
	if err := validation.CheckEmail(email); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.Notifier.Invite(email); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.AuditEvent("client_invited", "email", email, "admin", ident.ID)
	return nil
}

// MigrateEncryption encrypts every legacy plaintext body in place. Safe to
// re-run; rows already carrying the envelope are skipped.
func (s *Service) MigrateEncryption(ident auth.Identity) (scanned, migrated int, err error) {
	if ident.Role != models.RoleAdmin {
		return 0, 0, fmt.Errorf("%w: admin only", ErrForbidden)
	}
	scanned, migrated, err = store.EncryptLegacyBodies()
	if err != nil {
		return scanned, migrated, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	logger.AuditEvent("encryption_migrated", "scanned", scanned, "migrated", migrated, "admin", ident.ID)
	return scanned, migrated, nil
}
