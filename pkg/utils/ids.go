package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idSeq uint64

// GenMessageID generates a unique message ID using the current UTC
// nanosecond timestamp and an atomic sequence number. The format is
// "msg-<timestamp>-<seq>".
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}

// GenThreadID generates a unique thread ID in the same scheme.
func GenThreadID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("thread-%d-%d", n, s)
}

// GenAttachmentID returns a random attachment identifier. Attachment IDs
// double as storage path segments, so an opaque UUID is used instead of a
// timestamped ID.
func GenAttachmentID() string { return uuid.NewString() }

// GenNoteID returns a random note identifier.
func GenNoteID() string { return uuid.NewString() }

// GenUploadToken returns an opaque caller-held upload token.
func GenUploadToken() string { return uuid.NewString() }
