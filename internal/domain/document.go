package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MediaType identifies the declared format of an ingested document
type MediaType string

const (
	MediaTypePlainText MediaType = "plaintext"
	MediaTypeMarkdown  MediaType = "markdown"
	MediaTypePDF       MediaType = "pdf"
)

// Ingestion limits. Text is assumed to be extracted upstream; the cap
// bounds what a single document may contribute to the index.
const (
	MaxDocumentBytes = 10 * 1024 * 1024
	MaxDocumentChars = 200_000
	MaxFilenameChars = 255
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\- ]+`)

// Document is an immutable ingested document. Its identity is the
// sha256 of the raw content: re-ingesting identical bytes yields the
// same document, changed bytes supersede it under a new hash.
type Document struct {
	Hash       string
	Name       string
	MediaType  MediaType
	Text       string
	IngestedAt time.Time
}

// NewDocument validates raw document content and builds a Document.
// It enforces the media-type whitelist, the size caps, and that the
// content is decodable text; PDF bytes without an upstream-extracted
// text layer are rejected.
func NewDocument(name string, mediaType MediaType, raw []byte, now time.Time) (*Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingDocumentName
	}
	if !isValidMediaType(mediaType) {
		return nil, ErrUnsupportedMediaType
	}
	if len(raw) > MaxDocumentBytes {
		return nil, ErrDocumentTooLarge
	}
	if !utf8.Valid(raw) {
		return nil, ErrDocumentDecode
	}

	text := strings.ReplaceAll(string(raw), "\x00", "")
	if utf8.RuneCountInString(text) > MaxDocumentChars {
		text = string([]rune(text)[:MaxDocumentChars])
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	return &Document{
		Hash:       HashContent(raw),
		Name:       SafeFilename(name),
		MediaType:  mediaType,
		Text:       text,
		IngestedAt: now.UTC(),
	}, nil
}

// HashContent returns the sha256 hex digest of raw document bytes.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// SafeFilename strips path components and characters outside a
// conservative whitelist, and caps the length.
func SafeFilename(name string) string {
	base := filepath.Base(name)
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if len(base) > MaxFilenameChars {
		base = base[:MaxFilenameChars]
	}
	return base
}

// MediaTypeForExtension maps a filename extension to a MediaType.
// Unknown extensions are rejected at the boundary.
func MediaTypeForExtension(name string) (MediaType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return MediaTypePlainText, nil
	case ".md":
		return MediaTypeMarkdown, nil
	case ".pdf":
		return MediaTypePDF, nil
	default:
		return "", ErrUnsupportedMediaType
	}
}

func isValidMediaType(t MediaType) bool {
	switch t {
	case MediaTypePlainText, MediaTypeMarkdown, MediaTypePDF:
		return true
	}
	return false
}
