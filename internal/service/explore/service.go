package explore

import (
	"context"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/utils/pagination"
)

// Service implements the Explore gRPC API.
// It contains the business logic on top of repository and cache layers.
// Every method acts on behalf of the caller in the request context.
type Service struct {
	appCtx      *app.AppContext
	likeRepo    *repository.LikeRepository
	profileRepo *repository.ProfileRepository
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
// Dependencies include:
//   - DB connection (via LikeRepository and ProfileRepository)
//   - RedisCache for counters from AppContext
func NewExploreService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		likeRepo:    repository.NewLikeRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// ListCandidates returns profiles the caller has not liked yet.
//
// Behavior:
//   - Excludes the caller and everyone the caller already liked.
//   - Optional age range, city and looking_for filters.
//   - Newest profiles first; no ranking.
//   - Supports cursor-based pagination with paginationToken.
//
// Example:
//
//	svc.ListCandidates(ctx, &ListCandidatesRequest{City: "Lisbon"})
func (s *Service) ListCandidates(ctx context.Context, req *ListCandidatesRequest) (*ListCandidatesResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx)); err != nil {
		return nil, err
	}

	s.appCtx.Logger.Debug("ListCandidates called", "viewer", me.UserID, "city", req.City, "token", req.PaginationToken != nil)

	filter := repository.CandidateFilter{
		MinAge:     req.MinAge,
		MaxAge:     req.MaxAge,
		City:       req.City,
		LookingFor: req.LookingFor,
	}
	limit := pagination.Limit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)

	profiles, next, err := s.profileRepo.ListCandidates(ctx, me.UserID, filter, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListCandidates failed", "viewer", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}
	if profiles == nil {
		profiles = []db.Profile{}
	}
	return &ListCandidatesResponse{Profiles: profiles, NextPaginationToken: next}, nil
}

// ListLikedYou returns all users who liked the caller.
//
// Behavior:
//   - Fetches likes received by the caller via repository.ListLikers.
//   - Returns actor_id + timestamp pairs, with the liker's profile when it
//     still exists.
//   - Supports cursor-based pagination with paginationToken.
//
// Example:
//
//	svc.ListLikedYou(ctx, &ListLikedYouRequest{})
func (s *Service) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", me.UserID, "token", req.PaginationToken != nil)

	limit := pagination.Limit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)
	likes, next, err := s.likeRepo.ListLikers(ctx, me.UserID, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListLikers failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp, err := s.likersResponse(ctx, likes, next)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListLikedYou result", "liker_count", len(resp.Likers), "has_next", next != nil)
	return resp, nil
}

// ListNewLikedYou returns the users who liked the caller and have not been
// liked back.
//
// Behavior:
//   - Uses repository.ListNewLikers to exclude mutual likes.
//   - Returns actor_id + timestamp pairs.
//   - Supports cursor-based pagination.
//
// Example:
//
//	svc.ListNewLikedYou(ctx, &ListLikedYouRequest{Limit: 10})
func (s *Service) ListNewLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("ListNewLikedYou called", "recipient", me.UserID)

	limit := pagination.Limit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)
	likes, next, err := s.likeRepo.ListNewLikers(ctx, me.UserID, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListNewLikers failed", "err", err)
		return nil, svcErr.Map(err)
	}
	return s.likersResponse(ctx, likes, next)
}

func (s *Service) likersResponse(ctx context.Context, likes []db.Like, next *string) (*ListLikedYouResponse, error) {
	ids := make([]string, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
	}
	profiles, err := s.profileRepo.GetMany(ctx, ids)
	if err != nil {
		s.appCtx.Logger.Error("load liker profiles failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &ListLikedYouResponse{Likers: make([]Liker, 0, len(likes)), NextPaginationToken: next}
	for _, l := range likes {
		liker := Liker{
			ActorID:       l.LikerID,
			IsSuperLike:   l.IsSuperLike,
			UnixTimestamp: uint64(l.CreatedAt.UnixMilli()),
		}
		if p, ok := profiles[l.LikerID]; ok {
			liker.Profile = &p
		}
		resp.Likers = append(resp.Likers, liker)
	}
	return resp, nil
}

// CountLikedYou returns how many users liked the caller.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID), refreshing its TTL.
//  2. If cache miss or parse error, falls back to DB via repository.CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
//
// Example:
//
//	svc.CountLikedYou(ctx, &CountLikedYouRequest{})
func (s *Service) CountLikedYou(ctx context.Context, _ *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Debug("CountLikedYou called", "recipient", me.UserID)

	key := s.appCtx.RedisCache.KeyForLikeCount(me.UserID)

	// try cache first
	n, ok, err := s.appCtx.RedisCache.GetCounter(ctx, key)
	if err != nil {
		s.appCtx.Logger.Warn("like counter read failed, using db", "key", key, "err", err)
	}
	if ok {
		return &CountLikedYouResponse{Count: uint64(n)}, nil
	}

	// fallback: DB
	count, err := s.likeRepo.CountLikers(ctx, me.UserID)
	if err != nil {
		s.appCtx.Logger.Error("CountLikers failed", "err", err)
		return nil, svcErr.Map(err)
	}

	if err := s.appCtx.RedisCache.SetCounter(ctx, key, count); err != nil {
		s.appCtx.Logger.Warn("like counter write failed", "key", key, "err", err)
	}

	return &CountLikedYouResponse{Count: uint64(count)}, nil
}
