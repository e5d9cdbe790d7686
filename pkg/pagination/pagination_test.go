package pagination

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor %q is not url safe", encoded)
	}

	out, err := ParseCursor(" " + encoded + " ")
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("expected nil cursor for blank input, got %v, %v", c, err)
	}
	valid := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	for _, bad := range []string{"!!!", "bm8tc2VwYXJhdG9y", valid[:10], EncodeCursor(Cursor{CreatedAt: time.Now()})} {
		if _, err := ParseCursor(bad); err != ErrInvalidCursor {
			t.Errorf("expected ErrInvalidCursor for %q, got %v", bad, err)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 0, 3)
	for i := range 3 {
		rows = append(rows, Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Hour), ID: uuid.New()})
	}
	self := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 2, self)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected a full page with a cursor, got %d rows and %q", len(page), next)
	}
	if c, _ := ParseCursor(next); c.ID != rows[1].ID {
		t.Fatalf("cursor should point at the last row of the page")
	}

	page, next = Trim(rows[:2], 2, self)
	if len(page) != 2 || next != "" {
		t.Fatalf("expected last page without a cursor")
	}
	if Fetch(25) != 26 {
		t.Fatalf("expected one row of lookahead")
	}
}
