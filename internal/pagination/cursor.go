package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
)

// Cursor marks how far into a reverse-chronological listing the
// previous page reached.
type Cursor struct {
	Offset int
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates an opaque base64-encoded cursor from the offset
// of the next page
func EncodeCursor(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// DecodeCursor decodes a cursor produced by EncodeCursor. An empty
// cursor decodes to nil, meaning the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	offset, err := strconv.Atoi(string(decoded))
	if err != nil || offset < 0 {
		return nil, ErrInvalidCursor
	}

	return &Cursor{Offset: offset}, nil
}

// NextCursor creates the cursor for the page following a read of
// `read` items where `requested` were asked for; `nextOffset` is where
// that page would start. Returns empty string when the read came up
// short, meaning the listing is exhausted.
func NextCursor(read, requested, nextOffset int) string {
	if read < requested {
		return ""
	}
	return EncodeCursor(nextOffset)
}
