package relay

import (
	"fmt"
	"time"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/blob"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/models"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/store"
)

// Service implements the relay's domain operations over the store. All
// authorization beyond the gateway's role resolution happens here:
// thread/message ownership is checked server-side on every call.
type Service struct {
	Bus      *bus.Bus
	Signer   blob.Signer
	Notifier *notify.Notifier

	UploadTTL time.Duration
	ReadTTL   time.Duration
	MaxUpload int64
}

// New builds a service with defaulted URL lifetimes.
func New(b *bus.Bus, signer blob.Signer, notifier *notify.Notifier) *Service {
	return &Service{
		Bus:       b,
		Signer:    signer,
		Notifier:  notifier,
		UploadTTL: 10 * time.Minute,
		ReadTTL:   30 * time.Minute,
	}
}

func now() int64 { return time.Now().UTC().UnixNano() }

// ownThread resolves the caller's own thread, creating it lazily. Client
// role only.
func (s *Service) ownThread(ident auth.Identity) (*models.Thread, error) {
	if ident.Role != models.RoleClient {
		return nil, fmt.Errorf("%w: operation is client-scoped", ErrForbidden)
	}
	t, _, err := store.GetOrCreateThread(ident.ID, ident.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return t, nil
}

// threadFor resolves the thread an operation targets. Clients always act
// on their own thread (targetClientID must be empty or themselves); the
// admin targets any client, creating the thread on first contact.
func (s *Service) threadFor(ident auth.Identity, targetClientID string) (*models.Thread, error) {
	if ident.Role == models.RoleClient {
		if targetClientID != "" && targetClientID != ident.ID {
			return nil, fmt.Errorf("%w: not your thread", ErrForbidden)
		}
		return s.ownThread(ident)
	}
	if targetClientID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	t, _, err := store.GetOrCreateThread(targetClientID, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return t, nil
}

// ResolveThread resolves the thread a caller may observe, without any read
// side effects. Clients resolve (and lazily create) their own thread; the
// admin names a client and gets NotFound when no thread exists yet.
func (s *Service) ResolveThread(ident auth.Identity, targetClientID string) (*models.Thread, error) {
	if ident.Role == models.RoleClient {
		return s.ownThread(ident)
	}
	if targetClientID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	t, err := store.GetThreadByClient(targetClientID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: no thread for client", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return t, nil
}

// canModify reports whether ident is the original sender of m. Edits and
// deletes are permitted only on the editor's own messages: the admin owns
// admin-authored messages in any thread, a client owns client-authored
// messages in their own thread.
func canModify(ident auth.Identity, m *models.Message, t *models.Thread) bool {
	if ident.Role == models.RoleAdmin {
		return m.SenderRole == models.RoleAdmin
	}
	return m.SenderRole == models.RoleClient && t.ClientID == ident.ID
}

// loadOwnedMessage loads a message plus its thread and verifies the caller
// may modify it.
func loadOwnedMessage(ident auth.Identity, messageID string) (*models.Message, *models.Thread, error) {
	m, err := store.GetMessage(messageID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil, fmt.Errorf("%w: message", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	t, err := store.GetThread(m.Thread)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !canModify(ident, m, t) {
		return nil, nil, fmt.Errorf("%w: not the sender", ErrForbidden)
	}
	return m, t, nil
}

// viewableThread loads a thread and verifies read access for ident: the
// admin reads any thread, a client only their own.
func viewableThread(ident auth.Identity, threadID string) (*models.Thread, error) {
	t, err := store.GetThread(threadID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: thread", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if ident.Role != models.RoleAdmin && t.ClientID != ident.ID {
		return nil, fmt.Errorf("%w: not your thread", ErrForbidden)
	}
	return t, nil
}
