// Package pipeline owns the like -> match -> notification flow and message
// delivery. Every derived write happens in the transaction of the row that
// triggered it; notifications run in a savepoint so their failure never
// undoes the triggering write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/cache"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
)

// Flusher publishes committed outbox events; *realtime.Relay implements it.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
	// Kick asks the background loop to flush again soon.
	Kick()
}

type Pipeline struct {
	db      *gorm.DB
	cache   *cache.RedisCache
	relay   Flusher
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New builds a pipeline. cache and relay may be nil.
func New(database *gorm.DB, c *cache.RedisCache, relay Flusher, log *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{db: database, cache: c, relay: relay, log: log, metrics: m}
}

// LikeResult describes what a Like call changed.
type LikeResult struct {
	Like db.Like
	// Created is true when a new like row was inserted.
	Created bool
	// Updated is true when an existing like only had its super flag flipped.
	Updated bool
	// Match is the match of the pair, whether created now or earlier.
	Match        *db.Match
	MatchCreated bool
	// Notifications lists what the fanout produced.
	Notifications []db.Notification
}

// Like records liker -> liked and runs the derived consequences.
//
// Behavior:
//   - Self-likes are rejected with ErrSelfLike.
//   - New pair → like inserted, match deriver run, fanout run, all in one
//     transaction. A failing match insert rolls the like back.
//   - Existing pair → is_super_like is updated when it differs and no like
//     notification is sent. If both likes exist but the match is missing,
//     the match is derived and announced.
//   - When the in-transaction check saw no reciprocal like, the deriver is
//     re-run after commit to catch a concurrent reciprocal like. That run
//     ignores the caller's cancellation.
//
// Example:
//
//	res, err := p.Like(ctx, "u1", "u2", false)
func (p *Pipeline) Like(ctx context.Context, likerID, likedID string, super bool) (*LikeResult, error) {
	if likerID == likedID {
		return nil, svcErr.ErrSelfLike
	}

	res := &LikeResult{}
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := repository.NewLikeRepository(tx)
		outbox := realtime.NewOutbox(tx)

		like := &db.Like{LikerID: likerID, LikedID: likedID, IsSuperLike: super}
		inserted, err := likes.Insert(ctx, like)
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}

		if !inserted {
			existing, err := likes.Get(ctx, likerID, likedID)
			if err != nil {
				return fmt.Errorf("load like: %w", err)
			}
			if existing.IsSuperLike != super {
				if err := likes.SetSuper(ctx, existing, super); err != nil {
					return fmt.Errorf("update like: %w", err)
				}
				if err := outbox.Record(ctx, realtime.OpUpdate, existing); err != nil {
					return err
				}
				res.Updated = true
			}
			res.Like = *existing

			m, err := repository.NewMatchRepository(tx).GetByPair(ctx, likerID, likedID)
			if err == nil {
				res.Match = m
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("load match: %w", err)
			}

			m, created, err := deriveMatch(ctx, tx, existing)
			if err != nil {
				return err
			}
			res.Match, res.MatchCreated = m, created
			if created {
				p.log.Info("missing match derived on repeat like", "match_id", m.ID)
				res.Notifications = p.fanout(ctx, tx, "match", func(f *Fanout) error {
					return f.MatchInserted(ctx, m)
				})
			}
			return nil
		}

		res.Created = true
		res.Like = *like
		if err := outbox.Record(ctx, realtime.OpInsert, like); err != nil {
			return err
		}

		m, created, err := deriveMatch(ctx, tx, like)
		if err != nil {
			return err
		}
		res.Match, res.MatchCreated = m, created

		res.Notifications = p.fanout(ctx, tx, "like", func(f *Fanout) error {
			if err := f.LikeInserted(ctx, like); err != nil {
				return err
			}
			if created {
				return f.MatchInserted(ctx, m)
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		kind := "like"
		if super {
			kind = "super"
		}
		p.metrics.LikesTotal.WithLabelValues(kind).Inc()
		p.bump(ctx, p.likeCountKey(likedID), 1)
	}
	p.afterCommit(ctx, res.MatchCreated, res.Notifications)

	if res.Created && res.Match == nil {
		m, notes, err := p.Reconcile(context.WithoutCancel(ctx), likerID, likedID)
		if err != nil {
			// the like is committed; repeating either like repairs the match
			p.log.Error("match reconcile failed", "liker_id", likerID, "liked_id", likedID, "err", err)
		} else if m != nil {
			res.Match = m
			res.MatchCreated = notes != nil
			res.Notifications = append(res.Notifications, notes...)
		}
	}
	return res, nil
}

// Reconcile re-runs the match deriver for {a, b} in its own transaction.
// It returns the match when both likes exist; notes is non-nil only when
// this call created the match.
func (p *Pipeline) Reconcile(ctx context.Context, a, b string) (*db.Match, []db.Notification, error) {
	var (
		match *db.Match
		notes []db.Notification
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := repository.NewLikeRepository(tx)
		for _, pair := range [][2]string{{a, b}, {b, a}} {
			ok, err := likes.Exists(ctx, pair[0], pair[1])
			if err != nil {
				return fmt.Errorf("check like: %w", err)
			}
			if !ok {
				return nil
			}
		}

		m, created, err := repository.NewMatchRepository(tx).InsertIgnore(ctx, a, b)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		match = m
		if !created {
			return nil
		}
		if err := realtime.NewOutbox(tx).Record(ctx, realtime.OpInsert, m); err != nil {
			return err
		}
		notes = p.fanout(ctx, tx, "match", func(f *Fanout) error { return f.MatchInserted(ctx, m) })
		if notes == nil {
			notes = []db.Notification{}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if notes != nil {
		p.log.Info("match created by reconcile", "match_id", match.ID)
		p.afterCommit(ctx, true, notes)
	}
	return match, notes, nil
}

// SendMessage stores a message from senderID in matchID and notifies the
// other participant.
//
// Behavior:
//   - Unknown match → gorm.ErrRecordNotFound.
//   - Sender not a participant → ErrNotParticipant, nothing written.
//   - Fanout failure is logged; the message still commits.
func (p *Pipeline) SendMessage(ctx context.Context, matchID, senderID, content, messageType string) (*db.Message, []db.Notification, error) {
	var (
		msg   *db.Message
		notes []db.Notification
	)
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repository.NewMatchRepository(tx).Get(ctx, matchID)
		if err != nil {
			return err
		}
		if !m.Involves(senderID) {
			return svcErr.ErrNotParticipant
		}

		msg = &db.Message{MatchID: matchID, SenderID: senderID, Content: content, MessageType: messageType}
		if err := repository.NewMessageRepository(tx).Insert(ctx, msg); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := realtime.NewOutbox(tx).Record(ctx, realtime.OpInsert, msg); err != nil {
			return err
		}

		notes = p.fanout(ctx, tx, "message", func(f *Fanout) error { return f.MessageInserted(ctx, msg) })
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	p.metrics.MessagesTotal.WithLabelValues(messageType).Inc()
	p.afterCommit(ctx, false, notes)
	return msg, notes, nil
}

// deriveMatch inserts the match of like's pair when the reciprocal like
// exists. A duplicate match is not an error.
func deriveMatch(ctx context.Context, tx *gorm.DB, like *db.Like) (*db.Match, bool, error) {
	reciprocal, err := repository.NewLikeRepository(tx).Exists(ctx, like.LikedID, like.LikerID)
	if err != nil {
		return nil, false, fmt.Errorf("check reciprocal like: %w", err)
	}
	if !reciprocal {
		return nil, false, nil
	}

	m, created, err := repository.NewMatchRepository(tx).InsertIgnore(ctx, like.LikerID, like.LikedID)
	if err != nil {
		return nil, false, fmt.Errorf("insert match: %w", err)
	}
	if created {
		if err := realtime.NewOutbox(tx).Record(ctx, realtime.OpInsert, m); err != nil {
			return nil, false, err
		}
	}
	return m, created, nil
}

// fanout runs build in a savepoint of tx. On failure the savepoint is
// rolled back, the failure is logged and counted, and nil is returned.
func (p *Pipeline) fanout(ctx context.Context, tx *gorm.DB, event string, build func(f *Fanout) error) []db.Notification {
	var created []db.Notification
	err := tx.Transaction(func(sp *gorm.DB) error {
		f := newFanout(sp, p.log)
		if err := build(f); err != nil {
			return err
		}
		created = f.created
		return nil
	})
	if err != nil {
		p.log.Error("notification fanout failed, triggering write kept", "event", event, "err", err)
		p.metrics.FanoutFailuresTotal.WithLabelValues(event).Inc()
		return nil
	}
	return created
}

func (p *Pipeline) afterCommit(ctx context.Context, matchCreated bool, notes []db.Notification) {
	if matchCreated {
		p.metrics.MatchesTotal.Inc()
	}
	for _, n := range notes {
		p.metrics.NotificationsTotal.WithLabelValues(n.Type).Inc()
		p.bump(ctx, p.unreadKey(n.UserID), 1)
	}
	p.Publish(ctx)
}

// Publish flushes the outbox. On failure the relay loop is kicked to retry.
func (p *Pipeline) Publish(ctx context.Context) {
	if p.relay == nil {
		return
	}
	if _, err := p.relay.Flush(context.WithoutCancel(ctx)); err != nil {
		p.log.Warn("outbox flush failed, relay kicked", "err", err)
		p.relay.Kick()
	}
}

func (p *Pipeline) likeCountKey(userID string) string {
	if p.cache == nil {
		return ""
	}
	return p.cache.KeyForLikeCount(userID)
}

func (p *Pipeline) unreadKey(userID string) string {
	if p.cache == nil {
		return ""
	}
	return p.cache.KeyForUnread(userID)
}

func (p *Pipeline) bump(ctx context.Context, key string, delta int64) {
	if p.cache == nil || key == "" {
		return
	}
	if err := p.cache.Bump(ctx, key, delta); err != nil {
		p.log.Warn("cache bump failed", "key", key, "err", err)
	}
}
