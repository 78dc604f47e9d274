// Package pagination implements the opaque page tokens of list endpoints. A token is
// a gob encoded Cursor in base62 so it is URL safe without escaping.
package pagination

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"

	"github.com/jxskiss/base62"
)

const (
	DefaultPageSize uint32 = 20
	MaximumPageSize uint32 = 1000
	CursorDuration         = 12 * time.Hour
)

var (
	ErrMissingExpiration = errors.New("cursor does not have an expires timestamp")
	ErrCursorExpired     = errors.New("cursor has expired and is no longer useable")
	ErrUnparsableToken   = errors.New("could not parse the page token")
	ErrPageSizeTooLarge  = errors.New("page size is greater than the maximum allowed page size")
)

// Cursor selects a page of items ordered by descending id. A non-zero End selects the
// items below End; otherwise a non-zero Start selects the items above Start.
type Cursor struct {
	Start int64
	End   int64
	Size  uint32
	Exp   int64
}

func New(start, end int64, size uint32) *Cursor {
	if size == 0 || size > MaximumPageSize {
		size = DefaultPageSize
	}
	return &Cursor{
		Start: start,
		End:   end,
		Size:  size,
		Exp:   time.Now().Add(CursorDuration).UnixMilli(),
	}
}

// Before is the cursor of the page following an item with id.
func Before(id int64, size uint32) *Cursor {
	return New(0, id, size)
}

// After is the cursor of the page preceding an item with id.
func After(id int64, size uint32) *Cursor {
	return New(id, 0, size)
}

func Parse(token string) (*Cursor, error) {
	cursor := &Cursor{}
	if err := cursor.UnmarshalText([]byte(token)); err != nil {
		return nil, ErrUnparsableToken
	}
	if cursor.Size > MaximumPageSize {
		return nil, ErrPageSizeTooLarge
	}

	expired, err := cursor.HasExpired()
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrCursorExpired
	}
	return cursor, nil
}

func (c Cursor) PageToken() (string, error) {
	if c.Size > MaximumPageSize {
		return "", ErrPageSizeTooLarge
	}

	expired, err := c.HasExpired()
	if err != nil {
		return "", err
	}
	if expired {
		return "", ErrCursorExpired
	}

	token, err := c.MarshalText()
	if err != nil {
		return "", err
	}
	return string(token), nil
}

func (c Cursor) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return base62.Encode(buf.Bytes()), nil
}

func (c *Cursor) UnmarshalText(data []byte) error {
	decoded, err := base62.Decode(data)
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(decoded)).Decode(c)
}

func (c Cursor) Expires() time.Time {
	return time.UnixMilli(c.Exp)
}

func (c Cursor) HasExpired() (bool, error) {
	if c.Exp == 0 {
		return false, ErrMissingExpiration
	}
	return time.Now().After(c.Expires()), nil
}

func (c Cursor) IsZero() bool {
	return c.Start == 0 && c.End == 0 && c.Size == 0 && c.Exp == 0
}
