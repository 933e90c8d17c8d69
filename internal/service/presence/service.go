package presence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
)

type SetStatusRequest struct {
	IsOnline bool `json:"is_online"`
	IsTyping bool `json:"is_typing"`
}

type GetStatusRequest struct {
	UserID string `json:"user_id"`
}

// Service implements the Presence gRPC API.
type Service struct {
	appCtx *app.AppContext
	repo   *repository.StatusRepository
	now    func() time.Time
}

func NewPresenceService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		repo:   repository.NewStatusRepository(appCtx.DB),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetStatus upserts the caller's presence row and publishes it on the
// user_status stream. last_seen is stamped on every call.
func (s *Service) SetStatus(ctx context.Context, req *SetStatusRequest) (*db.UserStatus, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	now := s.now()
	st := &db.UserStatus{
		UserID:    me.UserID,
		IsOnline:  req.IsOnline,
		IsTyping:  req.IsOnline && req.IsTyping,
		LastSeen:  now,
		UpdatedAt: now,
	}
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, st); err != nil {
			return err
		}
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpUpdate, st)
	})
	if err != nil {
		s.appCtx.Logger.Error("SetStatus failed", "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Publish(ctx)
	return st, nil
}

// GetStatus returns the presence of any user. A user who never reported
// presence is returned offline.
func (s *Service) GetStatus(ctx context.Context, req *GetStatusRequest) (*db.UserStatus, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, svcErr.Map(err)
	}
	if req.UserID == "" {
		return nil, svcErr.InvalidArgument("user_id is required")
	}

	st, err := s.repo.Get(ctx, req.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &db.UserStatus{UserID: req.UserID}, nil
	}
	if err != nil {
		s.appCtx.Logger.Error("GetStatus failed", "user", req.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	return st, nil
}
