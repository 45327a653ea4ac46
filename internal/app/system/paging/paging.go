// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 20

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 50

// ParseLimit reads the "limit" query parameter, clamped to [1, MaxPageSize].
// Missing or invalid values give PageSize.
func ParseLimit(r *http.Request) int {
	s := query.Get(r, "limit")
	if s == "" {
		return PageSize
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return PageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// ParseCursor reads an ObjectID cursor from query parameter name.
// A missing or malformed cursor means "first page".
func ParseCursor(r *http.Request, name string) primitive.ObjectID {
	s := query.Get(r, name)
	if s == "" {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// LimitPlusOne is the look-ahead fetch size for a page of limit rows.
func LimitPlusOne(limit int) int64 { return int64(limit + 1) }

// TrimPage drops the look-ahead row, if fetched, and reports whether a next page exists.
func TrimPage[T any](rows *[]T, limit int) bool {
	if len(*rows) > limit {
		*rows = (*rows)[:limit]
		return true
	}
	return false
}

// NextCursor returns the cursor for the page after rows, or "" when hasNext is false.
func NextCursor[T any](rows []T, hasNext bool, idFn func(T) primitive.ObjectID) string {
	if !hasNext || len(rows) == 0 {
		return ""
	}
	return idFn(rows[len(rows)-1]).Hex()
}
