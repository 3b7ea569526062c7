package blob

import (
	"context"
	"time"
)

// Signer issues time-bounded signed URLs for direct caller↔storage byte
// transfer. The relay only manages metadata and the authorization envelope
// around storage access; it never proxies the bytes itself.
type Signer interface {
	// SignUpload returns a pre-signed write URL for the given storage key.
	SignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	// SignRead returns a short-lived read URL. Never a permanent public
	// URL.
	SignRead(ctx context.Context, key string, expires time.Duration) (string, error)
	// Bucket names the logical storage container for metadata rows.
	Bucket() string
}
