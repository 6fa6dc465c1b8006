package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for any cursor that does not decode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the keyset position after the last item of a page: the item's
// publication time and, for ties, its id.
type Cursor struct {
	At time.Time
	ID int64
}

// String encodes c as an opaque token safe to place in a query string.
func (c Cursor) String() string {
	key := c.At.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Parse decodes a token produced by Cursor.String.
func Parse(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	ts, idStr, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: id: %v", ErrInvalidCursor, err)
	}
	return Cursor{At: at.UTC(), ID: id}, nil
}

// EncodeCursor is shorthand for Cursor{ts, id}.String().
func EncodeCursor(ts time.Time, id int64) string {
	return Cursor{At: ts, ID: id}.String()
}

// DecodeCursor is Parse split into its parts.
func DecodeCursor(token string) (time.Time, int64, error) {
	c, err := Parse(token)
	return c.At, c.ID, err
}
