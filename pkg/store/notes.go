package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/models"
)

func noteKey(clientID, id string) string { return "note:" + clientID + ":" + id }

// UpsertNote creates or replaces a client note.
func UpsertNote(n *models.ClientNote) error {
	if err := ready(); err != nil {
		return err
	}
	return setJSON(noteKey(n.ClientID, n.ID), n)
}

// GetNote loads a note.
func GetNote(clientID, id string) (*models.ClientNote, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	var n models.ClientNote
	if err := getJSON(noteKey(clientID, id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotes returns notes for one client, or every note when clientID is
// empty.
func ListNotes(clientID string) ([]models.ClientNote, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	prefix := []byte("note:")
	if clientID != "" {
		prefix = []byte("note:" + clientID + ":")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.ClientNote
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var n models.ClientNote
		if err := unmarshal(iter.Value(), &n); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, iter.Error()
}

// DeleteNote removes a note. Deleting a missing note is a no-op.
func DeleteNote(clientID, id string) error {
	if err := ready(); err != nil {
		return err
	}
	return db.Delete([]byte(noteKey(clientID, id)), pebble.Sync)
}
