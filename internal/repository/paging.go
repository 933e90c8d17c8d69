package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/utils/pagination"
)

// withCursor applies a keyset cursor for lists ordered by (at, id).
// desc selects newest-first ordering.
func withCursor(query *gorm.DB, token *string, atCol, idCol string, desc bool) (*gorm.DB, error) {
	cursor, err := pagination.Decode(getString(token))
	if err != nil {
		return nil, err
	}
	if desc {
		query = query.Order(atCol + " DESC").Order(idCol + " DESC")
	} else {
		query = query.Order(atCol + " ASC").Order(idCol + " ASC")
	}
	if cursor.IsZero() {
		return query, nil
	}

	op := ">"
	if desc {
		op = "<"
	}
	ts := cursor.Time()
	return query.Where(
		"("+atCol+" "+op+" ? OR ("+atCol+" = ? AND "+idCol+" "+op+" ?))",
		ts, ts, cursor.Key,
	), nil
}

// nextPage trims the extra row fetched by a limit+1 query and builds the
// token of the following page.
func nextPage[T any](rows []T, limit int, key func(T) (string, time.Time)) ([]T, *string) {
	if len(rows) <= limit {
		return rows, nil
	}
	id, at := key(rows[limit-1])
	token, _ := pagination.Encode(pagination.After(id, at))
	return rows[:limit], &token
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
