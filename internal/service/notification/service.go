package notification

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/utils/pagination"
)

type ListNotificationsRequest struct {
	UnreadOnly      bool    `json:"unread_only,omitempty"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications       []db.Notification `json:"notifications"`
	NextPaginationToken *string           `json:"next_pagination_token,omitempty"`
}

type UnreadCountRequest struct{}

type UnreadCountResponse struct {
	Count uint64 `json:"count"`
}

type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

type MarkReadResponse struct {
	Updated int `json:"updated"`
}

type MarkAllReadRequest struct{}

type DeleteRequest struct {
	ID string `json:"id"`
}

type DeleteResponse struct{}

// Service implements the Notification gRPC API. Notifications are only
// ever read, changed or deleted by their recipient.
type Service struct {
	appCtx *app.AppContext
	repo   *repository.NotificationRepository
}

func NewNotificationService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		repo:   repository.NewNotificationRepository(appCtx.DB),
	}
}

func (s *Service) ListNotifications(ctx context.Context, req *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	limit := pagination.Limit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)
	notes, next, err := s.repo.List(ctx, me.UserID, req.UnreadOnly, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListNotifications failed", "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	if notes == nil {
		notes = []db.Notification{}
	}
	return &ListNotificationsResponse{Notifications: notes, NextPaginationToken: next}, nil
}

// UnreadCount returns the caller's unread notification count.
// Cache-first: notifications:unread:<user> is read and its TTL refreshed;
// on a miss the DB count is cached for an hour.
func (s *Service) UnreadCount(ctx context.Context, _ *UnreadCountRequest) (*UnreadCountResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	key := s.appCtx.RedisCache.KeyForUnread(me.UserID)
	n, ok, err := s.appCtx.RedisCache.GetCounter(ctx, key)
	if err != nil {
		s.appCtx.Logger.Warn("unread counter read failed, using db", "key", key, "err", err)
	}
	if ok {
		return &UnreadCountResponse{Count: uint64(n)}, nil
	}

	count, err := s.repo.CountUnread(ctx, me.UserID)
	if err != nil {
		s.appCtx.Logger.Error("CountUnread failed", "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	if err := s.appCtx.RedisCache.SetCounter(ctx, key, count); err != nil {
		s.appCtx.Logger.Warn("unread counter write failed", "key", key, "err", err)
	}
	return &UnreadCountResponse{Count: uint64(count)}, nil
}

// MarkRead flips the given notifications of the caller to read. Ids that
// belong to someone else or are already read are skipped.
func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if len(req.IDs) == 0 {
		return nil, svcErr.InvalidArgument("ids is required")
	}
	return s.markRead(ctx, me.UserID, func(repo *repository.NotificationRepository) ([]db.Notification, error) {
		return repo.MarkRead(ctx, me.UserID, req.IDs)
	})
}

func (s *Service) MarkAllRead(ctx context.Context, _ *MarkAllReadRequest) (*MarkReadResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return s.markRead(ctx, me.UserID, func(repo *repository.NotificationRepository) ([]db.Notification, error) {
		return repo.MarkAllRead(ctx, me.UserID)
	})
}

func (s *Service) markRead(ctx context.Context, userID string, mark func(*repository.NotificationRepository) ([]db.Notification, error)) (*MarkReadResponse, error) {
	var changed []db.Notification
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = mark(s.repo.WithTx(tx))
		if err != nil {
			return err
		}
		rows := make([]any, 0, len(changed))
		for i := range changed {
			rows = append(rows, &changed[i])
		}
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpUpdate, rows...)
	})
	if err != nil {
		s.appCtx.Logger.Error("mark notifications read failed", "user", userID, "err", err)
		return nil, svcErr.Map(err)
	}

	if len(changed) > 0 {
		s.bumpUnread(ctx, userID, -int64(len(changed)))
		s.appCtx.Publish(ctx)
	}
	return &MarkReadResponse{Updated: len(changed)}, nil
}

// Delete removes one of the caller's notifications. Someone else's id is
// reported as not found.
func (s *Service) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.ID == "" {
		return nil, svcErr.InvalidArgument("id is required")
	}

	var deleted *db.Notification
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Delete(ctx, me.UserID, req.ID)
		if err != nil {
			return err
		}
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpDelete, deleted)
	})
	if err != nil {
		s.appCtx.Logger.Warn("Delete notification failed", "id", req.ID, "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	if !deleted.Read {
		s.bumpUnread(ctx, me.UserID, -1)
	}
	s.appCtx.Publish(ctx)
	return &DeleteResponse{}, nil
}

func (s *Service) bumpUnread(ctx context.Context, userID string, delta int64) {
	key := s.appCtx.RedisCache.KeyForUnread(userID)
	if err := s.appCtx.RedisCache.Bump(ctx, key, delta); err != nil {
		s.appCtx.Logger.Warn("unread counter bump failed", "key", key, "err", err)
	}
}
