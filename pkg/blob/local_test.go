package blob

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalSignerRequiresConfig(t *testing.T) {
	_, err := NewLocalSigner("", "http://localhost:8080", "s")
	require.Error(t, err)
	_, err = NewLocalSigner("/tmp/blobs", "http://localhost:8080", "")
	require.Error(t, err)
}

func TestLocalSignVerifyRoundTrip(t *testing.T) {
	ls, err := NewLocalSigner("/tmp/blobs", "http://localhost:8080", "signing-secret")
	require.NoError(t, err)

	signed, err := ls.SignRead(context.Background(), "threads/t1/a1/file.png", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signed, "http://localhost:8080/v1/files/threads/t1/a1/file.png?"))

	u, err := url.Parse(signed)
	require.NoError(t, err)
	exp := u.Query().Get("exp")
	sig := u.Query().Get("sig")
	require.NotEmpty(t, exp)
	require.NotEmpty(t, sig)

	require.True(t, ls.Verify("GET", "threads/t1/a1/file.png", exp, sig))
	// a read grant is not a write grant
	require.False(t, ls.Verify("PUT", "threads/t1/a1/file.png", exp, sig))
	// and does not transfer to other keys
	require.False(t, ls.Verify("GET", "threads/t1/a1/other.png", exp, sig))
	require.False(t, ls.Verify("GET", "threads/t1/a1/file.png", exp, sig+"00"))
}

func TestLocalSignerExpiry(t *testing.T) {
	ls, err := NewLocalSigner("/tmp/blobs", "http://localhost:8080", "signing-secret")
	require.NoError(t, err)

	signed, err := ls.SignUpload(context.Background(), "k", "image/png", -time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	require.False(t, ls.Verify("PUT", "k", u.Query().Get("exp"), u.Query().Get("sig")), "expired grants are rejected")

	require.False(t, ls.Verify("GET", "k", "not-a-number", "sig"))
}
