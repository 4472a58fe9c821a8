package pagination

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/ggoodman/mcp-peer-go/mcperr"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	for page := 0; page < 20; page++ {
		for size := 1; size < 20; size++ {
			got, err := Decode(Encode(page, size))
			if err != nil {
				t.Fatalf("Decode(Encode(%d,%d)): %v", page, size, err)
			}
			if got.Page != page || got.PageSize != size {
				t.Fatalf("Decode(Encode(%d,%d)) = %+v", page, size, got)
			}
		}
	}
}

func TestEncodeFormat(t *testing.T) {
	t.Parallel()

	raw, err := base64.StdEncoding.DecodeString(Encode(2, 10))
	if err != nil {
		t.Fatalf("cursor is not base64: %v", err)
	}
	if string(raw) != `{"page":2,"pageSize":10}` {
		t.Fatalf("cursor payload = %s", raw)
	}
}

func TestDecodeEmptyCursor(t *testing.T) {
	t.Parallel()

	c, err := Decode("")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c != (Cursor{}) {
		t.Fatalf("empty cursor = %+v", c)
	}
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	for _, cursor := range []string{
		"not-base64",
		b64("not json"),
		b64(`{"pageSize":3}`),
		b64(`{"page":-1}`),
		b64(`{"page":1,"pageSize":0}`),
		b64(`{"page":"1"}`),
		b64(`[]`),
	} {
		_, err := Decode(cursor)
		var cErr *mcperr.InvalidCursorError
		if !errors.As(err, &cErr) {
			t.Fatalf("Decode(%q) = %v, want InvalidCursorError", cursor, err)
		}
	}
}

func TestPaginateVisitsEveryItem(t *testing.T) {
	t.Parallel()

	for n := 0; n < 25; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		for size := 1; size <= 7; size++ {
			var all []int
			cursor := ""
			for pages := 0; ; pages++ {
				if pages > n+1 {
					t.Fatalf("n=%d size=%d: pagination did not terminate", n, size)
				}
				page, next, err := Paginate(items, cursor, size)
				if err != nil {
					t.Fatalf("Paginate: %v", err)
				}
				all = append(all, page...)
				if next == "" {
					break
				}
				cursor = next
			}
			if n == 0 {
				all = []int{}
			}
			if diff := cmp.Diff(items, all); diff != "" {
				t.Fatalf("n=%d size=%d mismatch (-want +got):\n%s", n, size, diff)
			}
		}
	}
}

func TestPaginateCursorPageSizeWins(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d", "e"}
	page, next, err := Paginate(items, Encode(0, 2), 50)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, page); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
	c, err := Decode(next)
	if err != nil {
		t.Fatalf("Decode next: %v", err)
	}
	if c.Page != 1 || c.PageSize != 2 {
		t.Fatalf("next cursor = %+v", c)
	}
}

func TestPaginateBeyondEnd(t *testing.T) {
	t.Parallel()

	page, next, err := Paginate([]int{1, 2, 3}, Encode(5, 2), 2)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if len(page) != 0 || next != "" {
		t.Fatalf("page=%v next=%q, want empty page and no cursor", page, next)
	}
}

func TestPaginateHugePositions(t *testing.T) {
	t.Parallel()

	const maxInt = int(^uint(0) >> 1)
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "offset wraps to zero", cursor: Encode(1<<62, 4)},
		{name: "max page and size", cursor: Encode(maxInt, maxInt)},
		{name: "max page default size", cursor: Encode(maxInt, 2)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page, next, err := Paginate(items, tt.cursor, 2)
			if err != nil {
				t.Fatalf("Paginate: %v", err)
			}
			if diff := cmp.Diff([]int{}, page); diff != "" || next != "" {
				t.Fatalf("page=%v next=%q, want empty page and no cursor", page, next)
			}
		})
	}
}

func TestPaginateEmptyItems(t *testing.T) {
	t.Parallel()

	page, next, err := Paginate([]string(nil), "", 3)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if page == nil || len(page) != 0 || next != "" {
		t.Fatalf("page=%#v next=%q, want non-nil empty page", page, next)
	}
}
