package objects

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarvoy/clarvoy/internal/domain"
)

func writeObject(t *testing.T, dir string, content []byte) string {
	t.Helper()
	key := "uploads/" + uuid.NewString()
	full := filepath.Join(dir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o600))
	return ObjectPrefix + key
}

func newReader(t *testing.T) (*FilesystemReader, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewFilesystemReader(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, dir
}

// TestFilesystemReader_Open resolves object paths inside the root only.
func TestFilesystemReader_Open(t *testing.T) {
	r, dir := newReader(t)
	objectPath := writeObject(t, dir, []byte("hello"))

	rc, err := r.Open(context.Background(), objectPath)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = rc.Read(buf)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(buf))

	tests := []struct {
		name string
		path string
	}{
		{"missing", ObjectPrefix + "uploads/" + uuid.NewString()},
		{"empty", ""},
		{"root", ObjectPrefix},
		{"traversal_cleaned_into_root", ObjectPrefix + "../../etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Open(context.Background(), tt.path)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

// TestFilesystemReader_CanceledContext refuses work after cancellation.
func TestFilesystemReader_CanceledContext(t *testing.T) {
	r, dir := newReader(t)
	objectPath := writeObject(t, dir, []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Open(ctx, objectPath)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTextExtractor_Supports accepts only plain text.
func TestTextExtractor_Supports(t *testing.T) {
	e := NewTextExtractor(nil, 0)
	tests := []struct {
		mime string
		want bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"TEXT/PLAIN", true},
		{"application/pdf", false},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Supports(tt.mime))
		})
	}
}

// TestTextExtractor_Extract decodes UTF-8 and UTF-16 and truncates long text.
func TestTextExtractor_Extract(t *testing.T) {
	r, dir := newReader(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		content  []byte
		maxChars int
		want     string
	}{
		{"utf8", []byte("Quarterly plan"), 0, "Quarterly plan"},
		{"utf8_bom", append([]byte{0xEF, 0xBB, 0xBF}, "naïve"...), 0, "naïve"},
		{"utf16le_bom", []byte{0xFF, 0xFE, 'h', 0, 'i', 0}, 0, "hi"},
		{"utf16be_bom", []byte{0xFE, 0xFF, 0, 'h', 0, 'i'}, 0, "hi"},
		{"truncated", []byte("abcdefgh"), 5, "abcde" + TruncationSuffix},
		{"exact_limit", []byte("abcde"), 5, "abcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTextExtractor(r, tt.maxChars)
			got, err := e.Extract(ctx, writeObject(t, dir, tt.content), "text/plain")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestTextExtractor_Errors covers unsupported types and missing objects.
func TestTextExtractor_Errors(t *testing.T) {
	r, _ := newReader(t)
	e := NewTextExtractor(r, 0)

	_, err := e.Extract(context.Background(), ObjectPrefix+"a.pdf", "application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = e.Extract(context.Background(), ObjectPrefix+"missing.txt", "text/plain")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestTruncate counts characters, not bytes.
func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", MaxExtractedChars+10)
	got := Truncate(long, MaxExtractedChars)
	require.True(t, strings.HasSuffix(got, TruncationSuffix))
	body := strings.TrimSuffix(got, TruncationSuffix)
	assert.Equal(t, MaxExtractedChars, utf8.RuneCountInString(body))

	short := strings.Repeat("é", 10)
	assert.Equal(t, short, Truncate(short, MaxExtractedChars))
}
