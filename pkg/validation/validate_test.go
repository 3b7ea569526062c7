package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckBody(t *testing.T) {
	require.NoError(t, CheckBody("hello", false))
	require.Error(t, CheckBody("", false))
	require.Error(t, CheckBody("   ", false))
	// attachment-only sends may omit the body
	require.NoError(t, CheckBody("", true))
	require.Error(t, CheckBody(strings.Repeat("x", maxBodyLen+1), false))
}

func TestCheckUpload(t *testing.T) {
	require.NoError(t, CheckUpload("a.png", "image/png", 10, 100))
	require.Error(t, CheckUpload("", "image/png", 10, 100))
	require.Error(t, CheckUpload("a.png", "", 10, 100))
	require.Error(t, CheckUpload("a.png", "image/png", 0, 100))
	require.Error(t, CheckUpload("a.png", "image/png", -5, 100))
	require.Error(t, CheckUpload("a.png", "image/png", 101, 100))
	// zero max means unbounded
	require.NoError(t, CheckUpload("a.png", "image/png", 1<<40, 0))
}

func TestCheckEmail(t *testing.T) {
	require.NoError(t, CheckEmail("a@b.com"))
	require.Error(t, CheckEmail("no-at-sign"))
	require.Error(t, CheckEmail("@leading"))
	require.Error(t, CheckEmail("trailing@"))
	require.Error(t, CheckEmail("sp ace@b.com"))
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "report.pdf", SanitizeFileName("report.pdf"))
	require.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	require.Equal(t, "passwd", SanitizeFileName(`..\..\etc\passwd`))
	require.Equal(t, "my_file_1_.png", SanitizeFileName("my file (1).png"))
	// replaced characters never stack up
	require.Equal(t, "a_b.txt", SanitizeFileName("a  %% b.txt"))
	require.Equal(t, "file", SanitizeFileName("???"))
	require.Equal(t, "file", SanitizeFileName(""))
	require.LessOrEqual(t, len(SanitizeFileName(strings.Repeat("a", 500)+".png")), maxFileNameLen)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "short", Preview("short"))
	require.Equal(t, AttachmentPreview, Preview(""))
	require.Equal(t, AttachmentPreview, Preview("   "))

	long := strings.Repeat("é", PreviewLimit+50)
	got := Preview(long)
	require.Equal(t, PreviewLimit, len([]rune(got)), "truncation is rune-granular")
}
