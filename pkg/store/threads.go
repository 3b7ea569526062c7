package store

import (
	"bytes"
	"time"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/utils"
)

func threadMetaKey(id string) string    { return "meta:thread:" + id }
func ownerIndexKey(clientID string) string { return "owner:client:" + clientID }

// GetThread loads a thread by id.
func GetThread(id string) (*models.Thread, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	var t models.Thread
	if err := getJSON(threadMetaKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreadByClient loads the thread owned by the given client identity.
func GetThreadByClient(clientID string) (*models.Thread, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	tid, err := getString(ownerIndexKey(clientID))
	if err != nil {
		return nil, err
	}
	return GetThread(tid)
}

// SaveThread persists the thread meta row.
func SaveThread(t *models.Thread) error {
	if err := ready(); err != nil {
		return err
	}
	return setJSON(threadMetaKey(t.ID), t)
}

// GetOrCreateThread returns the client's thread, creating it atomically on
// first contact. Concurrent first-contact requests for the same client
// resolve to a single row via the owner index checked under the store
// mutex.
func GetOrCreateThread(clientID, clientEmail string) (*models.Thread, bool, error) {
	if err := ready(); err != nil {
		return nil, false, err
	}
	mu.Lock()
	defer mu.Unlock()

	if tid, err := getString(ownerIndexKey(clientID)); err == nil {
		t, err := GetThread(tid)
		if err != nil {
			return nil, false, err
		}
		// backfill the email on threads created before it was known
		if clientEmail != "" && t.ClientEmail == "" {
			t.ClientEmail = clientEmail
			if err := SaveThread(t); err != nil {
				return nil, false, err
			}
		}
		return t, false, nil
	} else if err != ErrNotFound {
		return nil, false, err
	}

	t := &models.Thread{
		ID:          utils.GenThreadID(),
		ClientID:    clientID,
		ClientEmail: clientEmail,
		CreatedTS:   time.Now().UTC().UnixNano(),
	}
	b := db.NewBatch()
	tb, err := marshal(t)
	if err != nil {
		return nil, false, err
	}
	_ = b.Set([]byte(threadMetaKey(t.ID)), tb, nil)
	_ = b.Set([]byte(ownerIndexKey(clientID)), []byte(t.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return nil, false, err
	}
	threadsCreated.Inc()
	logger.Info("thread_created", "thread", t.ID, "client", clientID)
	return t, true, nil
}

// ListThreads returns every thread meta row.
func ListThreads() ([]models.Thread, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	prefix := []byte("meta:thread:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var t models.Thread
		if err := unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, iter.Error()
}

// TouchOnSend updates the thread's last-message summary after a send and
// flips the counter-party's unread flag, never the sender's own.
// LastMessageTS is monotonically non-decreasing.
func TouchOnSend(threadID string, sender models.Role, preview string, ts int64) error {
	if err := ready(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return err
	}
	if ts > t.LastMessageTS {
		t.LastMessageTS = ts
	}
	t.LastMessagePreview = preview
	t.LastSenderRole = sender
	if sender == models.RoleClient {
		t.UnreadForAdmin = true
		t.LastClientMessageTS = ts
	} else {
		t.UnreadForClient = true
		t.LastAdminMessageTS = ts
	}
	return SaveThread(t)
}

// ClearUnread clears the unread flag belonging to the given role.
func ClearUnread(threadID string, forRole models.Role) error {
	if err := ready(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return err
	}
	if forRole == models.RoleAdmin {
		t.UnreadForAdmin = false
	} else {
		t.UnreadForClient = false
	}
	return SaveThread(t)
}

// SetPresence records a heartbeat or explicit offline transition.
func SetPresence(threadID string, online bool, ts int64) error {
	if err := ready(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return err
	}
	t.Online = online
	t.LastSeenTS = ts
	return SaveThread(t)
}

// SetNotified records the last outbound notification time for throttling.
func SetNotified(threadID string, ts int64) error {
	if err := ready(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return err
	}
	t.LastNotifiedTS = ts
	return SaveThread(t)
}

// SweepStalePresence marks online threads whose last heartbeat is older
// than the threshold as offline. Returns the number of threads swept.
func SweepStalePresence(cutoff int64) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	threads, err := ListThreads()
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range threads {
		t := &threads[i]
		if !t.Online || t.LastSeenTS >= cutoff {
			continue
		}
		mu.Lock()
		cur, err := GetThread(t.ID)
		if err == nil && cur.Online && cur.LastSeenTS < cutoff {
			cur.Online = false
			if err := SaveThread(cur); err == nil {
				swept++
			}
		}
		mu.Unlock()
	}
	return swept, nil
}
