package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
)

// Fanout produces the notifications of one triggering insert. It is not
// idempotent: running it twice for the same row duplicates notifications,
// so it is only called from the transaction that inserted the row.
type Fanout struct {
	notifications *repository.NotificationRepository
	profiles      *repository.ProfileRepository
	matches       *repository.MatchRepository
	outbox        *realtime.Outbox
	log           *slog.Logger

	created []db.Notification
}

func newFanout(tx *gorm.DB, log *slog.Logger) *Fanout {
	return &Fanout{
		notifications: repository.NewNotificationRepository(tx),
		profiles:      repository.NewProfileRepository(tx),
		matches:       repository.NewMatchRepository(tx),
		outbox:        realtime.NewOutbox(tx),
		log:           log,
	}
}

// displayName resolves a user's first name and degrades to FallbackName.
func (f *Fanout) displayName(ctx context.Context, userID string) string {
	name, ok, err := f.profiles.DisplayName(ctx, userID)
	if err != nil {
		f.log.Warn("display name lookup failed, using fallback", "user_id", userID, "err", err)
		return FallbackName
	}
	if !ok {
		f.log.Warn("no display name for actor, using fallback", "user_id", userID)
		return FallbackName
	}
	return name
}

func (f *Fanout) emit(ctx context.Context, notes ...*db.Notification) error {
	if err := f.notifications.Insert(ctx, notes...); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	rows := make([]any, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, n)
		f.created = append(f.created, *n)
	}
	return f.outbox.Record(ctx, realtime.OpInsert, rows...)
}

// LikeInserted notifies the liked user.
//
// Behavior:
//   - Type is super_like when the like is super, like otherwise.
//   - The message names the liker; payload {actor_id, like_id}.
func (f *Fanout) LikeInserted(ctx context.Context, like *db.Like) error {
	typ, title, message := LikeText(f.displayName(ctx, like.LikerID), like.IsSuperLike)
	return f.emit(ctx, &db.Notification{
		UserID:  like.LikedID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data: datatypes.JSONMap{
			"actor_id": like.LikerID,
			"like_id":  like.ID,
		},
	})
}

// MatchInserted notifies both participants, each naming the other.
// Payload {match_id, other_user_id}.
func (f *Fanout) MatchInserted(ctx context.Context, m *db.Match) error {
	notes := make([]*db.Notification, 0, 2)
	for _, pair := range [][2]string{{m.User1ID, m.User2ID}, {m.User2ID, m.User1ID}} {
		recipient, other := pair[0], pair[1]
		title, message := MatchText(f.displayName(ctx, other))
		notes = append(notes, &db.Notification{
			UserID:  recipient,
			Type:    db.NotificationMatch,
			Title:   title,
			Message: message,
			Data: datatypes.JSONMap{
				"match_id":      m.ID,
				"other_user_id": other,
			},
		})
	}
	return f.emit(ctx, notes...)
}

// MessageInserted notifies the participant who did not send msg.
//
// Behavior:
//   - The match is resolved to find the recipient.
//   - If the sender is not a participant nothing is emitted.
//   - The message quotes the first 50 characters of the content plus "..."
//     when truncated; payload {match_id, sender_id, message_id}.
func (f *Fanout) MessageInserted(ctx context.Context, msg *db.Message) error {
	m, err := f.matches.Get(ctx, msg.MatchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		f.log.Warn("message for unknown match, no notification", "match_id", msg.MatchID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load match: %w", err)
	}

	recipient, ok := m.Other(msg.SenderID)
	if !ok {
		f.log.Warn("sender is not a participant, no notification", "match_id", m.ID, "sender_id", msg.SenderID)
		return nil
	}

	title, message := MessageText(f.displayName(ctx, msg.SenderID), msg.Content)
	return f.emit(ctx, &db.Notification{
		UserID:  recipient,
		Type:    db.NotificationMessage,
		Title:   title,
		Message: message,
		Data: datatypes.JSONMap{
			"match_id":   m.ID,
			"sender_id":  msg.SenderID,
			"message_id": msg.ID,
		},
	})
}
