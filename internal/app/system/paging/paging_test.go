package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", PageSize},
		{"?limit=5", 5},
		{"?limit=0", PageSize},
		{"?limit=-3", PageSize},
		{"?limit=abc", PageSize},
		{"?limit=500", MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/groups"+tt.query, nil)
			if got := ParseLimit(r); got != tt.want {
				t.Errorf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseCursor(t *testing.T) {
	id := primitive.NewObjectID()

	r := httptest.NewRequest("GET", "/groups?before="+id.Hex(), nil)
	if got := ParseCursor(r, "before"); got != id {
		t.Errorf("ParseCursor = %v, want %v", got, id)
	}

	r = httptest.NewRequest("GET", "/groups?before=nothex", nil)
	if got := ParseCursor(r, "before"); !got.IsZero() {
		t.Errorf("expected zero id for malformed cursor, got %v", got)
	}
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name     string
		rows     []int
		limit    int
		wantLen  int
		wantNext bool
	}{
		{"empty", []int{}, 3, 0, false},
		{"short page", []int{1, 2}, 3, 2, false},
		{"exact page", []int{1, 2, 3}, 3, 3, false},
		{"look-ahead row", []int{1, 2, 3, 4}, 3, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := append([]int(nil), tt.rows...)
			hasNext := TrimPage(&rows, tt.limit)
			if len(rows) != tt.wantLen || hasNext != tt.wantNext {
				t.Errorf("TrimPage() = (%d, %v), want (%d, %v)", len(rows), hasNext, tt.wantLen, tt.wantNext)
			}
		})
	}
}

func TestNextCursor(t *testing.T) {
	type item struct{ ID primitive.ObjectID }
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	rows := []item{{a}, {b}}
	idFn := func(i item) primitive.ObjectID { return i.ID }

	if got := NextCursor(rows, true, idFn); got != b.Hex() {
		t.Errorf("NextCursor = %q, want %q", got, b.Hex())
	}
	if got := NextCursor(rows, false, idFn); got != "" {
		t.Errorf("NextCursor without next page = %q", got)
	}
	if got := LimitPlusOne(20); got != 21 {
		t.Errorf("LimitPlusOne(20) = %d", got)
	}
}
