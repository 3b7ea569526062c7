package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/models"
)

func attachKey(id string) string { return "attach:" + id }

func attachThreadIndexKey(threadID, id string) string {
	return "thread:" + threadID + ":attach:" + id
}

// SaveAttachment persists an attachment row and its thread index entry.
// The row exists before any bytes are uploaded: it reserves the slot and
// the storage path.
func SaveAttachment(a *models.Attachment) error {
	if err := ready(); err != nil {
		return err
	}
	data, err := marshal(a)
	if err != nil {
		return err
	}
	b := db.NewBatch()
	_ = b.Set([]byte(attachKey(a.ID)), data, nil)
	_ = b.Set([]byte(attachThreadIndexKey(a.Thread, a.ID)), []byte(a.ID), nil)
	return b.Commit(pebble.Sync)
}

// GetAttachment loads an attachment by id.
func GetAttachment(id string) (*models.Attachment, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	var a models.Attachment
	if err := getJSON(attachKey(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// LinkAttachments claims orphan attachments for a message. Only rows that
// are currently unlinked and belong to the given thread are linked; this
// is the race-safety guarantee — two sends racing to claim the same orphan
// can only have one win. Returns the IDs that were actually linked.
func LinkAttachments(threadID, messageID string, ids []string) ([]string, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()

	var linked []string
	for _, id := range ids {
		var a models.Attachment
		if err := getJSON(attachKey(id), &a); err != nil {
			continue
		}
		if a.Thread != threadID || a.Linked() {
			continue
		}
		a.MessageID = messageID
		if err := setJSON(attachKey(id), &a); err != nil {
			return linked, err
		}
		linked = append(linked, id)
	}
	if len(linked) > 0 {
		attachmentsLinked.Add(float64(len(linked)))
	}
	return linked, nil
}

// ListThreadAttachments returns every attachment row for a thread.
func ListThreadAttachments(threadID string) ([]models.Attachment, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	prefix := []byte("thread:" + threadID + ":attach:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Attachment
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		a, err := GetAttachment(string(iter.Value()))
		if err != nil {
			continue
		}
		out = append(out, *a)
	}
	return out, iter.Error()
}
