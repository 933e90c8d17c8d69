package profile

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
)

// Service implements the Profile gRPC API. Any authenticated user may read
// any profile; only the owner writes it.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
}

func NewProfileService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// CreateProfile completes onboarding for the caller.
//
// Behavior:
//   - The profile id is the caller's account id.
//   - Missing fields, age outside [18, 100] or fewer than 2 photos →
//     InvalidArgument, nothing written.
//   - A second profile for the same user → AlreadyExists.
func (s *Service) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*ProfileResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx, me.UserID)); err != nil {
		return nil, err
	}

	p := &db.Profile{ID: me.UserID, Email: me.Email}
	req.apply(p)
	if err := s.profileRepo.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.AlreadyExists("profile already exists")
		}
		s.appCtx.Logger.Error("CreateProfile failed", "user_id", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("profile created", "user_id", me.UserID)
	return s.response(p), nil
}

func (s *Service) GetProfile(ctx context.Context, req *GetProfileRequest) (*ProfileResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	id := req.UserID
	if id == "" {
		id = me.UserID
	}

	p, err := s.profileRepo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.appCtx.Logger.Error("GetProfile failed", "user_id", id, "err", err)
		}
		return nil, svcErr.Map(err)
	}
	return s.response(p), nil
}

// UpdateProfile replaces the caller's editable fields; the same rules as
// CreateProfile apply. id, email and created_at never change.
func (s *Service) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*ProfileResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := svcErr.Validation(req.Validate(ctx, me.UserID)); err != nil {
		return nil, err
	}

	var p *db.Profile
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.profileRepo.WithTx(tx)
		var err error
		p, err = repo.Get(ctx, me.UserID)
		if err != nil {
			return err
		}
		req.apply(p)
		return repo.Save(ctx, p)
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.appCtx.Logger.Error("UpdateProfile failed", "user_id", me.UserID, "err", err)
		}
		return nil, svcErr.Map(err)
	}
	return s.response(p), nil
}

func (s *Service) response(p *db.Profile) *ProfileResponse {
	resp := &ProfileResponse{Profile: *p, PhotoURLs: make([]string, 0, len(p.Photos))}
	for _, key := range p.Photos {
		if s.appCtx.Bucket != nil {
			resp.PhotoURLs = append(resp.PhotoURLs, s.appCtx.Bucket.URL(key))
		} else {
			resp.PhotoURLs = append(resp.PhotoURLs, key)
		}
	}
	return resp
}
