package match

import (
	"context"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/utils/pagination"
)

type ListMatchesRequest struct {
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

// MatchView is a match seen from one participant.
type MatchView struct {
	Match       db.Match    `json:"match"`
	OtherUserID string      `json:"other_user_id"`
	OtherUser   *db.Profile `json:"other_user,omitempty"`
}

type ListMatchesResponse struct {
	Matches             []MatchView `json:"matches"`
	NextPaginationToken *string     `json:"next_pagination_token,omitempty"`
}

type GetMatchRequest struct {
	MatchID string `json:"match_id"`
}

// Service implements the Match gRPC API. Matches are readable by their
// participants only.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	profileRepo *repository.ProfileRepository
}

func NewMatchService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// ListMatches returns the caller's matches, newest first, each with the
// other participant's profile.
func (s *Service) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	limit := pagination.Limit(req.Limit, pagination.DefaultLimit, pagination.MaxLimit)
	matches, next, err := s.matchRepo.ListForUser(ctx, me.UserID, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListMatches failed", "user", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	others := make([]string, 0, len(matches))
	for i := range matches {
		other, _ := matches[i].Other(me.UserID)
		others = append(others, other)
	}
	profiles, err := s.profileRepo.GetMany(ctx, others)
	if err != nil {
		s.appCtx.Logger.Error("load match profiles failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &ListMatchesResponse{Matches: make([]MatchView, 0, len(matches)), NextPaginationToken: next}
	for i, m := range matches {
		view := MatchView{Match: m, OtherUserID: others[i]}
		if p, ok := profiles[others[i]]; ok {
			view.OtherUser = &p
		}
		resp.Matches = append(resp.Matches, view)
	}
	return resp, nil
}

// GetMatch returns one match of the caller. Non-participants get
// PermissionDenied.
func (s *Service) GetMatch(ctx context.Context, req *GetMatchRequest) (*MatchView, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.MatchID == "" {
		return nil, svcErr.InvalidArgument("match_id is required")
	}

	m, err := s.matchRepo.Get(ctx, req.MatchID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	other, ok := m.Other(me.UserID)
	if !ok {
		s.appCtx.Logger.Warn("match read by non-participant", "match_id", m.ID, "user", me.UserID)
		return nil, svcErr.Map(svcErr.ErrNotParticipant)
	}

	view := &MatchView{Match: *m, OtherUserID: other}
	if p, err := s.profileRepo.Get(ctx, other); err == nil {
		view.OtherUser = p
	}
	return view, nil
}
