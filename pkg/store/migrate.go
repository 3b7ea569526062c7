package store

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/security"
)

// EncryptLegacyBodies scans every message row and encrypts bodies (and
// preserved original bodies) that do not yet carry the envelope marker.
// The marker check makes the migration idempotent; rows already migrated
// are skipped. Intended as a one-time operation after enabling encryption
// over a plaintext corpus.
func EncryptLegacyBodies() (scanned, migrated int, err error) {
	if err := ready(); err != nil {
		return 0, 0, err
	}
	if !security.Enabled() {
		return 0, 0, nil
	}
	mu.Lock()
	defer mu.Unlock()

	prefix := []byte("thread:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer iter.Close()

	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		if !strings.Contains(string(key), ":msg:") {
			continue
		}
		scanned++
		var m models.Message
		if uerr := unmarshal(iter.Value(), &m); uerr != nil {
			continue
		}
		changed := false
		if m.Body != "" && !security.Encrypted(m.Body) {
			sealed, serr := security.Seal(m.Body)
			if serr != nil {
				return scanned, migrated, serr
			}
			m.Body = sealed
			changed = true
		}
		if m.OriginalBody != "" && !security.Encrypted(m.OriginalBody) {
			sealed, serr := security.Seal(m.OriginalBody)
			if serr != nil {
				return scanned, migrated, serr
			}
			m.OriginalBody = sealed
			changed = true
		}
		if !changed {
			continue
		}
		data, merr := marshal(&m)
		if merr != nil {
			continue
		}
		if serr := db.Set(append([]byte(nil), key...), data, pebble.Sync); serr != nil {
			return scanned, migrated, serr
		}
		migrated++
	}
	logger.Info("legacy_bodies_migrated", "scanned", scanned, "migrated", migrated)
	return scanned, migrated, iter.Error()
}
