package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/repository"
)

var ErrInvalidFilter = errors.New("invalid subscription filter")

// Filter scopes a subscription to the rows of Table where Column = Value.
type Filter struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

func (f Filter) String() string {
	return fmt.Sprintf("%s:%s=eq.%s", f.Table, f.Column, f.Value)
}

// Matches reports whether c belongs to the stream selected by f.
func (f Filter) Matches(c Change) bool {
	return c.Table == f.Table && c.Scope[f.Column] == f.Value
}

// ParseFilter accepts "<table>:<column>=eq.<value>" (the "eq." is optional).
func ParseFilter(s string) (Filter, error) {
	table, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Filter{}, ErrInvalidFilter
	}
	column, value, ok := strings.Cut(rest, "=")
	if !ok {
		return Filter{}, ErrInvalidFilter
	}
	f := Filter{Table: table, Column: column, Value: strings.TrimPrefix(value, "eq.")}
	if f.Table == "" || f.Column == "" || f.Value == "" {
		return Filter{}, ErrInvalidFilter
	}
	return f, nil
}

// filterable lists, per stream, the columns a subscription may filter on.
var filterable = map[string][]string{
	TableNotifications: {"user_id"},
	TableLikes:         {"liker_id", "liked_id"},
	TableMatches:       {"user1_id", "user2_id"},
	TableMessages:      {"match_id"},
	TableUserStatus:    {"user_id"},
}

// Authorize checks that userID may watch the rows selected by f.
//
// Behavior:
//   - notifications: only user_id = caller.
//   - likes: liker_id = caller or liked_id = caller.
//   - matches: user1_id = caller or user2_id = caller.
//   - messages: match_id of a match the caller participates in.
//   - user_status: any user (presence is visible to authenticated peers).
func Authorize(ctx context.Context, matches *repository.MatchRepository, userID string, f Filter) error {
	cols, ok := filterable[f.Table]
	if !ok || !contains(cols, f.Column) || f.Value == "" {
		return fmt.Errorf("%w: %s", ErrInvalidFilter, f)
	}

	switch f.Table {
	case TableUserStatus:
		return nil
	case TableMessages:
		m, err := matches.Get(ctx, f.Value)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.ErrNotParticipant
		}
		if err != nil {
			return err
		}
		if !m.Involves(userID) {
			return svcErr.ErrNotParticipant
		}
		return nil
	default:
		if f.Value != userID {
			return svcErr.ErrForbidden
		}
		return nil
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
