package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/auth"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
)

// Service implements the Account gRPC API: registration, sign-in and the
// account deletion cascade.
type Service struct {
	appCtx      *app.AppContext
	accountRepo *repository.AccountRepository
	profileRepo *repository.ProfileRepository
}

func NewAccountService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		accountRepo: repository.NewAccountRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// SignUp registers an email/password account and opens a session.
//
// Behavior:
//   - Email is normalized (trimmed, lowercased) before storage.
//   - A taken email → AlreadyExists with a friendly message.
//   - The response token authenticates every other RPC.
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*SessionResponse, error) {
	if err := svcErr.Validation(req.Validate(ctx)); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.appCtx.Logger.Error("hash password failed", "err", err)
		return nil, svcErr.Map(err)
	}

	acc := &db.Account{Email: req.Email, PasswordHash: hash}
	if err := s.accountRepo.Create(ctx, acc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.appCtx.Logger.Info("sign up with registered email", "email", repository.NormalizeEmail(req.Email))
			return nil, svcErr.AlreadyExists(auth.FriendlyMessage(auth.ErrAlreadyRegistered))
		}
		s.appCtx.Logger.Error("create account failed", "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("account created", "user_id", acc.ID)
	return s.session(ctx, acc)
}

// SignIn checks the credentials and opens a session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*SessionResponse, error) {
	if err := svcErr.Validation(req.Validate(ctx)); err != nil {
		return nil, err
	}

	acc, err := s.accountRepo.GetByEmail(ctx, req.Email)
	if err == nil {
		err = auth.CheckPassword(acc.PasswordHash, req.Password)
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		err = auth.ErrInvalidCredentials
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, svcErr.Unauthenticated(auth.FriendlyMessage(err))
		}
		s.appCtx.Logger.Error("sign in failed", "err", err)
		return nil, svcErr.Map(err)
	}

	if err := s.accountRepo.TouchLogin(ctx, acc.ID, time.Now().UTC()); err != nil {
		s.appCtx.Logger.Warn("touch last login failed", "user_id", acc.ID, "err", err)
	}
	return s.session(ctx, acc)
}

func (s *Service) session(ctx context.Context, acc *db.Account) (*SessionResponse, error) {
	token, exp, err := s.appCtx.Issuer.Issue(session.Session{UserID: acc.ID, Email: acc.Email})
	if err != nil {
		s.appCtx.Logger.Error("issue token failed", "user_id", acc.ID, "err", err)
		return nil, svcErr.Map(err)
	}

	_, err = s.profileRepo.Get(ctx, acc.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.appCtx.Logger.Warn("profile lookup failed", "user_id", acc.ID, "err", err)
	}
	return &SessionResponse{
		UserID:      acc.ID,
		AccessToken: token,
		ExpiresAt:   exp,
		HasProfile:  err == nil,
	}, nil
}

// DeleteAccount removes the caller and everything that references them.
//
// Behavior:
//   - One transaction deletes likes sent and received, matches and their
//     messages, notifications, presence, the profile and the account.
//   - Deleted likes and matches are published as delete changes.
//   - Photos under "<user_id>/" are removed from the bucket after commit;
//     a bucket failure is logged, the account stays deleted.
func (s *Service) DeleteAccount(ctx context.Context, _ *DeleteAccountRequest) (*DeleteAccountResponse, error) {
	me, err := session.Require(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	var affected []string
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outbox := realtime.NewOutbox(tx)

		likes, err := repository.NewLikeRepository(tx).DeleteInvolving(ctx, me.UserID)
		if err != nil {
			return fmt.Errorf("delete likes: %w", err)
		}
		for i := range likes {
			if likes[i].LikerID == me.UserID {
				affected = append(affected, likes[i].LikedID)
			}
			if err := outbox.Record(ctx, realtime.OpDelete, &likes[i]); err != nil {
				return err
			}
		}

		matches, err := repository.NewMatchRepository(tx).DeleteInvolving(ctx, me.UserID)
		if err != nil {
			return fmt.Errorf("delete matches: %w", err)
		}
		matchIDs := make([]string, 0, len(matches))
		for i := range matches {
			matchIDs = append(matchIDs, matches[i].ID)
			if err := outbox.Record(ctx, realtime.OpDelete, &matches[i]); err != nil {
				return err
			}
		}
		if err := repository.NewMessageRepository(tx).DeleteForMatches(ctx, matchIDs); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}

		if err := repository.NewNotificationRepository(tx).DeleteForUser(ctx, me.UserID); err != nil {
			return fmt.Errorf("delete notifications: %w", err)
		}
		if err := repository.NewStatusRepository(tx).Delete(ctx, me.UserID); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		if _, err := repository.NewProfileRepository(tx).Delete(ctx, me.UserID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return repository.NewAccountRepository(tx).Delete(ctx, me.UserID)
	})
	if err != nil {
		s.appCtx.Logger.Error("DeleteAccount failed", "user_id", me.UserID, "err", err)
		return nil, svcErr.Map(err)
	}

	s.appCtx.Logger.Info("account deleted", "user_id", me.UserID)

	if s.appCtx.Bucket != nil {
		if err := s.appCtx.Bucket.DeletePrefix(ctx, me.UserID+"/"); err != nil {
			s.appCtx.Logger.Error("delete photos failed", "user_id", me.UserID, "err", err)
		}
	}

	keys := []string{
		s.appCtx.RedisCache.KeyForLikeCount(me.UserID),
		s.appCtx.RedisCache.KeyForUnread(me.UserID),
	}
	for _, other := range affected {
		keys = append(keys, s.appCtx.RedisCache.KeyForLikeCount(other))
	}
	if err := s.appCtx.RedisCache.Invalidate(ctx, keys...); err != nil {
		s.appCtx.Logger.Warn("invalidate counters failed", "user_id", me.UserID, "err", err)
	}

	s.appCtx.Publish(ctx)
	return &DeleteAccountResponse{}, nil
}
