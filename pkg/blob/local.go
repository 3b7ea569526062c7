package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LocalSigner signs URLs served by the relay's own file handler
// (/v1/files/...). Useful for development and single-node deployments
// where no object store is available; the signature carries the method,
// key and expiry, so a read grant cannot be replayed as a write.
type LocalSigner struct {
	secret  []byte
	baseURL string
	dir     string
	bucket  string
}

// NewLocalSigner builds a signer over a filesystem directory.
func NewLocalSigner(dir, baseURL, secret string) (*LocalSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("local signing secret is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("local storage dir is required")
	}
	return &LocalSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		bucket:  "local",
	}, nil
}

// Dir returns the filesystem root served by the file handler.
func (l *LocalSigner) Dir() string { return l.dir }

func (l *LocalSigner) sign(method, key string, exp int64) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *LocalSigner) signedURL(method, key string, expires time.Duration) string {
	exp := time.Now().Add(expires).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", l.sign(method, key, exp))
	return l.baseURL + "/v1/files/" + key + "?" + q.Encode()
}

// SignUpload implements Signer.
func (l *LocalSigner) SignUpload(_ context.Context, key, _ string, expires time.Duration) (string, error) {
	return l.signedURL("PUT", key, expires), nil
}

// SignRead implements Signer.
func (l *LocalSigner) SignRead(_ context.Context, key string, expires time.Duration) (string, error) {
	return l.signedURL("GET", key, expires), nil
}

// Bucket implements Signer.
func (l *LocalSigner) Bucket() string { return l.bucket }

// Verify checks an incoming signed file request. expRaw is the unix expiry
// from the query string.
func (l *LocalSigner) Verify(method, key, expRaw, sig string) bool {
	exp, err := strconv.ParseInt(expRaw, 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > exp {
		return false
	}
	expected := l.sign(method, key, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}
