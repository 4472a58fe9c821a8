// Package pagination implements the opaque cursor tokens used by list
// endpoints. A cursor is the standard base64 encoding of
// {"page":int,"pageSize":int}.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ggoodman/mcp-peer-go/mcperr"
)

// Cursor is a decoded pagination position. PageSize is zero when the token
// did not carry one.
type Cursor struct {
	Page     int
	PageSize int
}

type token struct {
	Page     *int `json:"page"`
	PageSize *int `json:"pageSize,omitempty"`
}

// Encode renders a cursor token for the given position.
func Encode(page, pageSize int) string {
	b, _ := json.Marshal(token{Page: &page, PageSize: &pageSize})
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses a cursor token. The empty string is the absent cursor and
// decodes to page 0 with no page size. Anything this package could not have
// produced fails with *mcperr.InvalidCursorError.
func Decode(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, &mcperr.InvalidCursorError{Cursor: cursor, Err: err}
	}
	var tok token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return Cursor{}, &mcperr.InvalidCursorError{Cursor: cursor, Err: err}
	}
	if tok.Page == nil {
		return Cursor{}, &mcperr.InvalidCursorError{Cursor: cursor, Err: errors.New("missing page")}
	}
	if *tok.Page < 0 {
		return Cursor{}, &mcperr.InvalidCursorError{Cursor: cursor, Err: fmt.Errorf("negative page %d", *tok.Page)}
	}
	c := Cursor{Page: *tok.Page}
	if tok.PageSize != nil {
		if *tok.PageSize <= 0 {
			return Cursor{}, &mcperr.InvalidCursorError{Cursor: cursor, Err: fmt.Errorf("non-positive page size %d", *tok.PageSize)}
		}
		c.PageSize = *tok.PageSize
	}
	return c, nil
}

// Paginate returns the page of items selected by cursor along with the token
// for the following page. A page size carried by the cursor wins over
// defaultPageSize. The next token is empty exactly when the returned page
// reaches the end of items; a cursor past the end yields an empty page.
func Paginate[T any](items []T, cursor string, defaultPageSize int) ([]T, string, error) {
	c, err := Decode(cursor)
	if err != nil {
		return nil, "", err
	}
	size := defaultPageSize
	if c.PageSize > 0 {
		size = c.PageSize
	}
	if size <= 0 {
		return nil, "", fmt.Errorf("pagination: page size must be positive, got %d", size)
	}

	// Checked before multiplying: page and size may be arbitrarily large.
	if len(items) == 0 || c.Page > (len(items)-1)/size {
		return []T{}, "", nil
	}
	start := c.Page * size
	if len(items)-start <= size {
		return items[start:], "", nil
	}
	return items[start : start+size], Encode(c.Page+1, size), nil
}
