package chat

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/utils/pagination"
)

// Service implements the Chat gRPC API. Only the two participants of a
// match may read or write its messages.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
}

func NewChatService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
	}
}

// participant loads the match and checks that userID is in it.
func (s *Service) participant(ctx context.Context, matchID, userID string) (*db.Match, error) {
	m, err := s.matchRepo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, svcErr.ErrNotParticipant
	}
	return m, nil
}

// SendMessage stores a message from the caller and notifies the other
// participant.
//
// Behavior:
//   - Empty content or an unknown message type → InvalidArgument.
//   - Caller not in the match → PermissionDenied.
//   - A failed notification does not fail the send.
func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx)); err != nil {
		return nil, err
	}
	typ := req.MessageType
	if typ == "" {
		typ = db.MessageTypeText
	}

	msg, _, err := s.appCtx.Pipeline.SendMessage(ctx, req.MatchID, me.UserID, req.Content, typ)
	if err != nil {
		s.appCtx.Logger.Error("SendMessage failed", "match_id", req.MatchID, "sender", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &SendMessageResponse{Message: *msg}, nil
}

// ListMessages returns the messages of a match, newest first.
func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.MatchID == "" {
		return nil, svcErr.InvalidArgument("match_id is required")
	}
	if _, err := s.participant(ctx, req.MatchID, me.UserID); err != nil {
		return nil, svcErr.Map(err)
	}

	limit := pagination.Limit(req.Limit, 50, pagination.MaxLimit)
	msgs, next, err := s.messageRepo.List(ctx, req.MatchID, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListMessages failed", "match_id", req.MatchID, "err", err)
		return nil, svcErr.Map(err)
	}
	if msgs == nil {
		msgs = []db.Message{}
	}
	return &ListMessagesResponse{Messages: msgs, NextPaginationToken: next}, nil
}

// MarkRead stamps read_at on every message the caller received in the
// match. Each stamped message is published as an update.
func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.MatchID == "" {
		return nil, svcErr.InvalidArgument("match_id is required")
	}
	if _, err := s.participant(ctx, req.MatchID, me.UserID); err != nil {
		return nil, svcErr.Map(err)
	}

	var updated int
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs, err := repository.NewMessageRepository(tx).MarkRead(ctx, req.MatchID, me.UserID, time.Now().UTC())
		if err != nil {
			return err
		}
		updated = len(msgs)
		rows := make([]any, 0, len(msgs))
		for i := range msgs {
			rows = append(rows, &msgs[i])
		}
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpUpdate, rows...)
	})
	if err != nil {
		s.appCtx.Logger.Error("MarkRead failed", "match_id", req.MatchID, "err", err)
		return nil, svcErr.Map(err)
	}

	if updated > 0 {
		s.appCtx.Publish(ctx)
	}
	return &MarkReadResponse{Updated: updated}, nil
}

// DeleteMessage removes a message sent by the caller. Messages of the
// other participant cannot be deleted.
func (s *Service) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*DeleteMessageResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.MessageID == "" {
		return nil, svcErr.InvalidArgument("message_id is required")
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewMessageRepository(tx)
		msg, err := repo.Get(ctx, req.MessageID)
		if err != nil {
			return err
		}
		if msg.SenderID != me.UserID {
			return svcErr.ErrForbidden
		}
		if err := repo.Delete(ctx, msg.ID); err != nil {
			return err
		}
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpDelete, msg)
	})
	if err != nil {
		s.appCtx.Logger.Warn("DeleteMessage failed", "message_id", req.MessageID, "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Publish(ctx)
	return &DeleteMessageResponse{}, nil
}
