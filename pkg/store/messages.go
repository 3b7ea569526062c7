package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp; combined with the timestamp it forms the sort key.
var seq uint64

func marshal(v interface{}) ([]byte, error)  { return json.Marshal(v) }
func unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }

func msgIndexKey(id string) string { return "msgidx:" + id }

func msgSortKey(threadID string, ts int64, s uint64) string {
	return fmt.Sprintf("thread:%s:msg:%020d-%06d", threadID, ts, s)
}

// AppendMessage inserts a message under a sortable timestamp key and
// indexes it by message ID for in-place mutation (edit, tombstone,
// receipts). CreatedTS is assigned here when the caller left it zero.
func AppendMessage(m *models.Message) error {
	if err := ready(); err != nil {
		return err
	}
	if m.CreatedTS == 0 {
		m.CreatedTS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := msgSortKey(m.Thread, m.CreatedTS, s)

	data, err := marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b := db.NewBatch()
	_ = b.Set([]byte(key), data, nil)
	_ = b.Set([]byte(msgIndexKey(m.ID)), []byte(key), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", m.Thread, "key", key, "error", err)
		return err
	}
	messagesSaved.WithLabelValues(string(m.SenderRole)).Inc()
	return nil
}

// GetMessage loads a message by ID via the index.
func GetMessage(id string) (*models.Message, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	key, err := getString(msgIndexKey(id))
	if err != nil {
		return nil, err
	}
	var m models.Message
	if err := getJSON(key, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessage overwrites the stored row in place, preserving the
// original sort position. Only the four nullable timestamp/edit fields and
// the attachment list legitimately change after creation.
func UpdateMessage(m *models.Message) error {
	if err := ready(); err != nil {
		return err
	}
	key, err := getString(msgIndexKey(m.ID))
	if err != nil {
		return err
	}
	data, err := marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return db.Set([]byte(key), data, pebble.Sync)
}

// ListMessages returns the thread's messages ascending by creation time.
// A positive limit keeps only the most recent limit messages (still in
// ascending order).
func ListMessages(threadID string, limit int) ([]models.Message, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	prefix := []byte("thread:" + threadID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("message_row_unreadable", "thread", threadID, "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ApplyReadReceipts marks every counter-party-authored message in the
// thread as delivered, and as read by the client when the reader is the
// client. Returns the number of rows updated. History fetch is the
// read-receipt trigger.
func ApplyReadReceipts(threadID string, reader models.Role, ts int64) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	mu.Lock()
	defer mu.Unlock()

	prefix := []byte("thread:" + threadID + ":msg:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	counterparty := reader.Counterparty()
	b := db.NewBatch()
	updated := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.SenderRole != counterparty {
			continue
		}
		changed := false
		if m.DeliveredTS == 0 {
			m.DeliveredTS = ts
			changed = true
		}
		if reader == models.RoleClient && m.ReadByClientTS == 0 {
			m.ReadByClientTS = ts
			changed = true
		}
		if !changed {
			continue
		}
		data, err := marshal(&m)
		if err != nil {
			continue
		}
		_ = b.Set(append([]byte(nil), iter.Key()...), data, nil)
		updated++
	}
	if err := iter.Error(); err != nil {
		b.Close()
		return 0, err
	}
	if updated == 0 {
		b.Close()
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return updated, nil
}
