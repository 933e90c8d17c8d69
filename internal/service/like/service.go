package like

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
)

// Service implements the Like gRPC API on top of the pipeline.
type Service struct {
	appCtx      *app.AppContext
	accountRepo *repository.AccountRepository
	profileRepo *repository.ProfileRepository
}

func NewLikeService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		accountRepo: repository.NewAccountRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Like records that the caller likes req.LikedID.
//
// Behavior:
//   - The liker is always the caller; self-likes are rejected.
//   - The caller's account must still exist, else Unauthenticated.
//   - The liked profile must exist.
//   - Repeating a like is idempotent; it only flips is_super_like.
//   - When the other user already liked the caller the response carries
//     the match.
//
// Example:
//
//	svc.Like(ctx, &LikeRequest{LikedID: "u2", IsSuperLike: true})
func (s *Service) Like(ctx context.Context, req *LikeRequest) (*LikeResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx, me.UserID)); err != nil {
		return nil, err
	}

	s.appCtx.Logger.Debug("Like called", "liker", me.UserID, "liked", req.LikedID, "super", req.IsSuperLike)

	if _, err := s.accountRepo.Get(ctx, me.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.Unauthenticated("account no longer exists")
		}
		s.appCtx.Logger.Error("load liker account failed", "liker", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	if _, err := s.profileRepo.Get(ctx, req.LikedID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("profile not found")
		}
		s.appCtx.Logger.Error("load liked profile failed", "liked", req.LikedID, "err", err)
		return nil, svcErr.Map(err)
	}

	res, err := s.appCtx.Pipeline.Like(ctx, me.UserID, req.LikedID, req.IsSuperLike)
	if err != nil {
		s.appCtx.Logger.Error("Like failed", "liker", me.UserID, "liked", req.LikedID, "err", err)
		return nil, svcErr.Map(err)
	}

	if res.MatchCreated {
		s.appCtx.Logger.Info("match created", "match_id", res.Match.ID, "user1", res.Match.User1ID, "user2", res.Match.User2ID)
	}
	return &LikeResponse{
		Like:     res.Like,
		Match:    res.Match,
		IsMatch:  res.Match != nil,
		NewMatch: res.MatchCreated,
	}, nil
}

// PassPendingLike dismisses a like the caller received by deleting it.
//
// Behavior:
//   - Only the like liker -> caller is removed; it is not an error when
//     there is none (Removed = false).
//   - An existing match of the pair is kept.
//   - The caller's cached like count is decremented.
func (s *Service) PassPendingLike(ctx context.Context, req *PassPendingLikeRequest) (*PassPendingLikeResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx)); err != nil {
		return nil, err
	}

	removed := false
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := repository.NewLikeRepository(tx).Delete(ctx, req.LikerID, me.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return realtime.NewOutbox(tx).Record(ctx, realtime.OpDelete, deleted)
	})
	if err != nil {
		s.appCtx.Logger.Error("PassPendingLike failed", "liker", req.LikerID, "liked", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	if removed {
		key := s.appCtx.RedisCache.KeyForLikeCount(me.UserID)
		if err := s.appCtx.RedisCache.Bump(ctx, key, -1); err != nil {
			s.appCtx.Logger.Warn("like counter bump failed", "key", key, "err", err)
		}
		s.appCtx.Publish(ctx)
	}
	return &PassPendingLikeResponse{Removed: removed}, nil
}
