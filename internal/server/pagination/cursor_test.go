package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 28, 15, 4, 5, 123456789, time.FixedZone("X", 3600))
	token := EncodeCursor(ts, 42)
	assert.NotContains(t, token, "=")

	ts2, id, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, ts.Equal(ts2))
	assert.Equal(t, time.UTC, ts2.Location())
	assert.Equal(t, int64(42), id)
}

func TestParse_AcceptsPaddedToken(t *testing.T) {
	token := base64.URLEncoding.EncodeToString([]byte("2025-01-01T00:00:00Z|7"))
	c, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
}

func TestParse_Invalid(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	for name, token := range map[string]string{
		"not base64":   "%%%",
		"no separator": enc([]byte("2025-01-01T00:00:00Z")),
		"bad time":     enc([]byte("yesterday|1")),
		"bad id":       enc([]byte("2025-01-01T00:00:00Z|abc")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}
