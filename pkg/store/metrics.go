package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_messages_saved_total",
		Help: "Messages appended to the store, by sender role.",
	}, []string{"role"})

	threadsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_threads_created_total",
		Help: "Threads created on first contact.",
	})

	attachmentsLinked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_attachments_linked_total",
		Help: "Attachments claimed by a message at send time.",
	})

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatrelay_db_size_bytes",
		Help: "Best-effort on-disk size of the pebble database directory.",
	}, func() float64 { return float64(DBSizeBytes()) })
)

// DBSizeBytes computes the on-disk size of the DB directory. Best effort.
func DBSizeBytes() int64 {
	if dbPath == "" {
		return 0
	}
	var total int64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
