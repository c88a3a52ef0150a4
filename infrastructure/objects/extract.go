package objects

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// Text extraction limits.
const (
	// MaxExtractedChars caps the stored text of one attachment.
	MaxExtractedChars = 50000
	// TruncationSuffix marks text cut at MaxExtractedChars.
	TruncationSuffix = "\n[...truncated]"
)

var _ ports.TextExtractor = (*TextExtractor)(nil)

// TextExtractor pulls plain text out of uploaded objects. Only text/plain is
// parsed; UTF-8 is assumed unless a UTF-16 byte order mark says otherwise.
type TextExtractor struct {
	reader   ports.ObjectReader
	maxChars int
}

// NewTextExtractor reads objects through reader. maxChars <= 0 selects
// MaxExtractedChars.
func NewTextExtractor(reader ports.ObjectReader, maxChars int) *TextExtractor {
	if maxChars <= 0 {
		maxChars = MaxExtractedChars
	}
	return &TextExtractor{reader: reader, maxChars: maxChars}
}

// Supports reports whether text can be extracted from mimeType.
func (e *TextExtractor) Supports(mimeType string) bool {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.EqualFold(strings.TrimSpace(base), "text/plain")
}

// Extract reads the object at objectPath and returns its text, truncated to
// the configured limit.
func (e *TextExtractor) Extract(ctx context.Context, objectPath, mimeType string) (string, error) {
	if !e.Supports(mimeType) {
		return "", fmt.Errorf("extract %s: %w", mimeType, domain.ErrUnsupportedFileType)
	}

	rc, err := e.reader.Open(ctx, objectPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	limited := io.LimitReader(rc, domain.MaxAttachmentSize)
	raw, err := io.ReadAll(transform.NewReader(limited, decoder))
	if err != nil {
		return "", fmt.Errorf("read object %q: %w", objectPath, err)
	}

	return Truncate(strings.ToValidUTF8(string(raw), "�"), e.maxChars), nil
}

// Truncate cuts text to maxChars characters and appends TruncationSuffix
// when anything was removed.
func Truncate(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	i, n := 0, 0
	for i = range text {
		if n == maxChars {
			break
		}
		n++
	}
	return text[:i] + TruncationSuffix
}
