package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
)

// Key namespaces:
//
//	meta:thread:<threadID>              -> Thread JSON
//	owner:client:<clientID>             -> threadID (unique owner index)
//	thread:<threadID>:msg:<ts>-<seq>    -> Message JSON (sortable key)
//	msgidx:<messageID>                  -> full message key
//	attach:<attachmentID>               -> Attachment JSON
//	thread:<threadID>:attach:<attID>    -> attachmentID (thread index)
//	note:<clientID>:<noteID>            -> ClientNote JSON
var db *pebble.DB

var dbPath string

// mu serializes read-modify-write sequences (thread meta updates, message
// mutation, attachment linking). The thread row is the only meaningfully
// contended resource; see LinkAttachments for the one correctness-critical
// conditional write.
var mu sync.Mutex

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func ready() error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return nil
}

// getJSON loads and unmarshals the value at key into v.
func getJSON(key string, v interface{}) error {
	val, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, v)
}

// getString loads the raw value at key.
func getString(key string) (string, error) {
	val, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer closer.Close()
	return string(val), nil
}

// setJSON marshals v and writes it at key with a synced write.
func setJSON(key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return db.Set([]byte(key), b, pebble.Sync)
}
