package relay

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/pkg/auth"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/security"
	"chatrelay/pkg/store"
)

var (
	adminIdent = auth.Identity{ID: "admin-1", Email: "support@example.com", Role: models.RoleAdmin}
	aliceIdent = auth.Identity{ID: "alice", Email: "alice@example.com", Role: models.RoleClient}
	bobIdent   = auth.Identity{ID: "bob", Email: "bob@example.com", Role: models.RoleClient}
)

func TestMain(m *testing.M) {
	logger.Init("error")
	dir, err := os.MkdirTemp("", "chatrelay-relay-test")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := store.Open(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	security.SetSecret("relay-test-secret")
	code := m.Run()
	security.SetSecret("")
	_ = store.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestService() *Service {
	return New(bus.New(), nil, nil)
}

func TestSendEncryptsAtRestEchoesPlaintext(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "hello admin"})
	require.NoError(t, err)
	require.Equal(t, "hello admin", m.Body, "sender echo is plaintext")
	require.Equal(t, models.RoleClient, m.SenderRole)

	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	require.True(t, security.Encrypted(stored.Body), "stored body must be ciphertext")
	require.NotContains(t, stored.Body, "hello admin")

	th, err := store.GetThread(m.Thread)
	require.NoError(t, err)
	require.Equal(t, "hello admin", th.LastMessagePreview)
	require.True(t, th.UnreadForAdmin)
	require.False(t, th.UnreadForClient)
}

func TestSendValidation(t *testing.T) {
	s := newTestService()

	_, err := s.Send(aliceIdent, SendInput{Body: ""})
	require.True(t, errors.Is(err, ErrValidation))

	// attachment-only send passes body validation (missing rows simply
	// fail to link)
	m, err := s.Send(aliceIdent, SendInput{Body: "", AttachmentIDs: []string{"missing"}})
	require.NoError(t, err)
	require.Empty(t, m.AttachmentIDs)
}

func TestClientCannotTargetForeignThread(t *testing.T) {
	s := newTestService()

	_, err := s.Send(bobIdent, SendInput{TargetClientID: "alice", Body: "sneaky"})
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestAdminSendCreatesThreadOnFirstContact(t *testing.T) {
	s := newTestService()

	m, err := s.Send(adminIdent, SendInput{TargetClientID: "carol", Body: "welcome"})
	require.NoError(t, err)

	th, err := store.GetThreadByClient("carol")
	require.NoError(t, err)
	require.Equal(t, th.ID, m.Thread)
	require.True(t, th.UnreadForClient)
}

func TestAdminSendRequiresTarget(t *testing.T) {
	s := newTestService()
	_, err := s.Send(adminIdent, SendInput{Body: "to nobody"})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestEditPreservesOriginalOnce(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "first version"})
	require.NoError(t, err)

	edited, err := s.Edit(aliceIdent, m.ID, "second version")
	require.NoError(t, err)
	require.Equal(t, "second version", edited.Body)
	require.NotZero(t, edited.EditedTS)
	require.Empty(t, edited.OriginalBody, "original never leaves through the edit reply")

	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	firstOriginal := stored.OriginalBody
	require.NotEmpty(t, firstOriginal)
	plain, err := security.Open(firstOriginal)
	require.NoError(t, err)
	require.Equal(t, "first version", plain)

	// second edit keeps the first original
	_, err = s.Edit(aliceIdent, m.ID, "third version")
	require.NoError(t, err)
	stored, err = store.GetMessage(m.ID)
	require.NoError(t, err)
	require.Equal(t, firstOriginal, stored.OriginalBody)
}

func TestEditOnlyBySender(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "mine"})
	require.NoError(t, err)

	_, err = s.Edit(adminIdent, m.ID, "hijacked")
	require.True(t, errors.Is(err, ErrForbidden), "admin cannot edit a client-authored message")

	_, err = s.Edit(bobIdent, m.ID, "hijacked")
	require.True(t, errors.Is(err, ErrForbidden))

	_, err = s.Edit(aliceIdent, "no-such-message", "x")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestEditDeletedIsConflict(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "doomed"})
	require.NoError(t, err)
	require.NoError(t, s.SoftDelete(aliceIdent, m.ID))

	_, err = s.Edit(aliceIdent, m.ID, "too late")
	require.True(t, errors.Is(err, ErrConflict))
}

func TestSoftDeleteIdempotentAndTombstoned(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "delete me"})
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(aliceIdent, m.ID))
	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	firstTS := stored.DeletedTS
	require.NotZero(t, firstTS)
	require.NotEqual(t, models.TombstoneBody, stored.Body, "storage keeps the ciphertext")

	// deleting again succeeds and keeps the original timestamp
	require.NoError(t, s.SoftDelete(aliceIdent, m.ID))
	stored, err = store.GetMessage(m.ID)
	require.NoError(t, err)
	require.Equal(t, firstTS, stored.DeletedTS)

	_, msgs, err := s.History(aliceIdent, "", 0)
	require.NoError(t, err)
	found := false
	for _, hm := range msgs {
		if hm.ID == m.ID {
			found = true
			require.Equal(t, models.TombstoneBody, hm.Body, "readers see the tombstone")
		}
	}
	require.True(t, found)
}

func TestSoftDeleteOnlyBySender(t *testing.T) {
	s := newTestService()

	m, err := s.Send(adminIdent, SendInput{TargetClientID: "alice", Body: "admin note"})
	require.NoError(t, err)

	err = s.SoftDelete(aliceIdent, m.ID)
	require.True(t, errors.Is(err, ErrForbidden), "client cannot delete an admin-authored message")
	require.NoError(t, s.SoftDelete(adminIdent, m.ID))
}

func TestHistoryDecryptsAndAppliesReceipts(t *testing.T) {
	s := newTestService()

	sent, err := s.Send(adminIdent, SendInput{TargetClientID: "dave", Body: "hello dave"})
	require.NoError(t, err)

	dave := auth.Identity{ID: "dave", Email: "dave@example.com", Role: models.RoleClient}
	th, msgs, err := s.History(dave, "", 0)
	require.NoError(t, err)
	require.Equal(t, sent.Thread, th.ID)

	var got *models.Message
	for i := range msgs {
		if msgs[i].ID == sent.ID {
			got = &msgs[i]
		}
	}
	require.NotNil(t, got)
	require.Equal(t, "hello dave", got.Body, "history returns plaintext")
	require.Empty(t, got.OriginalBody)

	// the history fetch is the read-receipt trigger
	stored, err := store.GetMessage(sent.ID)
	require.NoError(t, err)
	require.NotZero(t, stored.DeliveredTS)
	require.NotZero(t, stored.ReadByClientTS)

	after, err := store.GetThread(th.ID)
	require.NoError(t, err)
	require.False(t, after.UnreadForClient)
}

func TestHistoryCorruptRowYieldsPlaceholder(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "will corrupt"})
	require.NoError(t, err)

	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	stored.Body = "encv1:corrupted:row"
	require.NoError(t, store.UpdateMessage(stored))

	_, msgs, err := s.History(aliceIdent, "", 0)
	require.NoError(t, err, "one corrupt row must not fail the fetch")
	found := false
	for _, hm := range msgs {
		if hm.ID == m.ID {
			found = true
			require.Equal(t, security.DecryptFailedPlaceholder, hm.Body)
		}
	}
	require.True(t, found)
}

func TestAdminHistoryMissingThreadIsNotFound(t *testing.T) {
	s := newTestService()
	_, _, err := s.History(adminIdent, "never-contacted", 0)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestViewOriginalAdminOnly(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "before"})
	require.NoError(t, err)
	_, err = s.Edit(aliceIdent, m.ID, "after")
	require.NoError(t, err)

	_, err = s.ViewOriginal(aliceIdent, m.ID)
	require.True(t, errors.Is(err, ErrForbidden))

	body, err := s.ViewOriginal(adminIdent, m.ID)
	require.NoError(t, err)
	require.Equal(t, "before", body)

	// never-edited messages expose their stored body
	m2, err := s.Send(aliceIdent, SendInput{Body: "untouched"})
	require.NoError(t, err)
	body, err = s.ViewOriginal(adminIdent, m2.ID)
	require.NoError(t, err)
	require.Equal(t, "untouched", body)
}

func TestViewOriginalRecoversDeletedBody(t *testing.T) {
	s := newTestService()

	m, err := s.Send(aliceIdent, SendInput{Body: "final wording"})
	require.NoError(t, err)
	require.NoError(t, s.SoftDelete(aliceIdent, m.ID))

	// readers only ever see the tombstone
	_, msgs, err := s.History(aliceIdent, "", 0)
	require.NoError(t, err)
	for _, hm := range msgs {
		if hm.ID == m.ID {
			require.Equal(t, models.TombstoneBody, hm.Body)
		}
	}

	// the audit view still recovers the content
	body, err := s.ViewOriginal(adminIdent, m.ID)
	require.NoError(t, err)
	require.Equal(t, "final wording", body)
}

func TestBroadcastPartialFailure(t *testing.T) {
	s := newTestService()

	// ensure at least three threads exist
	for _, c := range []string{"bcast-1", "bcast-2", "bcast-3"} {
		_, err := s.Send(adminIdent, SendInput{TargetClientID: c, Body: "seed"})
		require.NoError(t, err)
	}
	threads, err := store.ListThreads()
	require.NoError(t, err)
	total := len(threads)
	require.GreaterOrEqual(t, total, 3)

	// fail exactly one thread's insert
	var failThread string
	for _, th := range threads {
		if th.ClientID == "bcast-2" {
			failThread = th.ID
		}
	}
	require.NotEmpty(t, failThread)

	orig := appendMessage
	appendMessage = func(m *models.Message) error {
		if m.Thread == failThread {
			return errors.New("disk full")
		}
		return store.AppendMessage(m)
	}
	defer func() { appendMessage = orig }()

	res, err := s.Broadcast(adminIdent, "maintenance tonight")
	require.NoError(t, err)
	require.Equal(t, total, res.TotalThreads)
	require.Equal(t, total-1, res.Sent, "fan-out continues past the failed thread")
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0], failThread)

	// delivered bodies carry the banner prefix, decrypted for readers
	_, msgs, err := s.History(auth.Identity{ID: "bcast-1", Role: models.RoleClient}, "", 0)
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	require.Equal(t, BroadcastPrefix+"maintenance tonight", last.Body)
	require.Equal(t, models.RoleAdmin, last.SenderRole)
}

func TestBroadcastAdminOnly(t *testing.T) {
	s := newTestService()
	_, err := s.Broadcast(aliceIdent, "not allowed")
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestPresenceLifecycle(t *testing.T) {
	s := newTestService()
	eve := auth.Identity{ID: "eve", Email: "eve@example.com", Role: models.RoleClient}

	tid, err := s.Heartbeat(eve)
	require.NoError(t, err)
	th, err := store.GetThreadByClient("eve")
	require.NoError(t, err)
	require.Equal(t, th.ID, tid)
	require.True(t, th.Online)
	require.NotZero(t, th.LastSeenTS)

	_, err = s.Offline(eve)
	require.NoError(t, err)
	th, err = store.GetThread(th.ID)
	require.NoError(t, err)
	require.False(t, th.Online)

	// presence operations are client-scoped
	_, err = s.Heartbeat(adminIdent)
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestNotesLifecycle(t *testing.T) {
	s := newTestService()

	n, err := s.UpsertNote(adminIdent, &models.ClientNote{ClientID: "alice", Body: "priority client"})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.NotZero(t, n.CreatedTS)

	n.Body = "priority client, renewed"
	updated, err := s.UpsertNote(adminIdent, n)
	require.NoError(t, err)
	require.Equal(t, n.CreatedTS, updated.CreatedTS)
	require.NotZero(t, updated.UpdatedTS)

	notes, err := s.ListNotes(adminIdent, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, notes)

	require.NoError(t, s.DeleteNote(adminIdent, "alice", n.ID))

	_, err = s.ListNotes(aliceIdent, "alice")
	require.True(t, errors.Is(err, ErrForbidden))
	_, err = s.UpsertNote(aliceIdent, &models.ClientNote{ClientID: "alice", Body: "self note"})
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestMarkReadClearsUnread(t *testing.T) {
	s := newTestService()

	m, err := s.Send(adminIdent, SendInput{TargetClientID: "frank", Body: "ping"})
	require.NoError(t, err)

	frank := auth.Identity{ID: "frank", Role: models.RoleClient}
	updated, err := s.MarkRead(frank, "", "")
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	th, err := store.GetThread(m.Thread)
	require.NoError(t, err)
	require.False(t, th.UnreadForClient)

	stored, err := store.GetMessage(m.ID)
	require.NoError(t, err)
	require.NotZero(t, stored.ReadByClientTS)

	// naming the thread directly works too; nothing left to update
	updated, err = s.MarkRead(frank, th.ID, "")
	require.NoError(t, err)
	require.Zero(t, updated)

	// a foreign client may not mark someone else's thread
	_, err = s.MarkRead(bobIdent, th.ID, "")
	require.True(t, errors.Is(err, ErrForbidden))
}
