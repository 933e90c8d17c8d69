package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned for tokens that were not produced by Encode.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is the opaque pagination state we encode/decode.
// Key (a row id) + At (created_at in micros) establish a stable cursor
// for lists ordered by (created_at, id).
type Cursor struct {
	Key string `json:"k"`
	At  int64  `json:"t,omitempty"`
}

// IsZero reports whether c is the first-page cursor.
func (c Cursor) IsZero() bool { return c.Key == "" && c.At == 0 }

// Time returns At as a UTC time.
func (c Cursor) Time() time.Time { return time.UnixMicro(c.At).UTC() }

// After builds the cursor pointing past a row with the given id and time.
func After(key string, at time.Time) Cursor {
	return Cursor{Key: key, At: at.UnixMicro()}
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.Key == "" {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Limit clamps a requested page size into [1, max], using def for zero.
func Limit(requested, def, max int) int {
	switch {
	case requested <= 0:
		return def
	case requested > max:
		return max
	}
	return requested
}

// Page sizes shared by every list endpoint.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)
