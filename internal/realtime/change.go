// Package realtime turns committed row changes into typed change streams.
//
// Writers append OutboxEvent rows in the same transaction as the change
// (Outbox.Record). After commit a Relay hands them, in commit order, to a
// Publisher: the local Hub directly, or a Redis/Kafka bus that fans out to the
// Hub of every server instance. Subscribers attach to the Hub with a single
// equality filter.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/oggyb/heartline/internal/db"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Streams that can be watched.
const (
	TableLikes         = "likes"
	TableMatches       = "matches"
	TableMessages      = "messages"
	TableNotifications = "notifications"
	TableUserStatus    = "user_status"
)

// Change is one committed insert/update/delete of a row.
type Change struct {
	ID    string            `json:"id"`
	Seq   uint64            `json:"seq"`
	Table string            `json:"table"`
	Op    Op                `json:"op"`
	Row   json.RawMessage   `json:"row"`
	Scope map[string]string `json:"scope"`
	At    time.Time         `json:"at"`
}

// Decode unmarshals the row of c into T, for example
// Decode[db.Notification](c).
func Decode[T any](c Change) (T, error) {
	var row T
	if err := json.Unmarshal(c.Row, &row); err != nil {
		return row, fmt.Errorf("decode %s row: %w", c.Table, err)
	}
	return row, nil
}

// describe returns the stream and the filterable columns of a row.
func describe(row any) (string, map[string]string, error) {
	switch r := row.(type) {
	case *db.Like:
		return TableLikes, map[string]string{"id": r.ID, "liker_id": r.LikerID, "liked_id": r.LikedID}, nil
	case *db.Match:
		return TableMatches, map[string]string{"id": r.ID, "user1_id": r.User1ID, "user2_id": r.User2ID}, nil
	case *db.Message:
		return TableMessages, map[string]string{"id": r.ID, "match_id": r.MatchID, "sender_id": r.SenderID}, nil
	case *db.Notification:
		return TableNotifications, map[string]string{"id": r.ID, "user_id": r.UserID}, nil
	case *db.UserStatus:
		return TableUserStatus, map[string]string{"user_id": r.UserID}, nil
	}
	return "", nil, fmt.Errorf("realtime: unsupported row type %T", row)
}

// NewEvent builds the outbox row describing op on row.
func NewEvent(op Op, row any) (*db.OutboxEvent, error) {
	table, scope, err := describe(row)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("marshal %s row: %w", table, err)
	}
	sc := make(map[string]any, len(scope))
	for k, v := range scope {
		sc[k] = v
	}
	return &db.OutboxEvent{
		EventID: ulid.Make().String(),
		Entity:  table,
		Op:      string(op),
		Row:     payload,
		Scope:   sc,
	}, nil
}

// FromEvent converts a stored outbox row into the Change delivered to
// subscribers.
func FromEvent(e db.OutboxEvent) Change {
	scope := make(map[string]string, len(e.Scope))
	for k, v := range e.Scope {
		if s, ok := v.(string); ok {
			scope[k] = s
		}
	}
	return Change{
		ID:    e.EventID,
		Seq:   e.ID,
		Table: e.Entity,
		Op:    Op(e.Op),
		Row:   json.RawMessage(e.Row),
		Scope: scope,
		At:    e.CreatedAt,
	}
}
