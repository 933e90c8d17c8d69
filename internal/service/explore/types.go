package explore

import (
	"context"

	"github.com/oggyb/heartline/internal/db"
)

type ListCandidatesRequest struct {
	MinAge          int     `json:"min_age,omitempty"`
	MaxAge          int     `json:"max_age,omitempty"`
	City            string  `json:"city,omitempty"`
	LookingFor      string  `json:"looking_for,omitempty"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

func (r *ListCandidatesRequest) Validate(ctx context.Context) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.MinAge != 0 && (r.MinAge < 18 || r.MinAge > 100) {
		problems["min_age"] = append(problems["min_age"], "must be between 18 and 100")
	}
	if r.MaxAge != 0 && (r.MaxAge < 18 || r.MaxAge > 100) {
		problems["max_age"] = append(problems["max_age"], "must be between 18 and 100")
	}
	if r.MinAge != 0 && r.MaxAge != 0 && r.MinAge > r.MaxAge {
		problems["min_age"] = append(problems["min_age"], "must not exceed max_age")
	}
	if r.Limit < 0 {
		problems["limit"] = append(problems["limit"], "must not be negative")
	}
	return problems
}

type ListCandidatesResponse struct {
	Profiles            []db.Profile `json:"profiles"`
	NextPaginationToken *string      `json:"next_pagination_token,omitempty"`
}

type ListLikedYouRequest struct {
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

// Liker is one person who liked the caller.
type Liker struct {
	ActorID       string      `json:"actor_id"`
	IsSuperLike   bool        `json:"is_super_like"`
	UnixTimestamp uint64      `json:"unix_timestamp"`
	Profile       *db.Profile `json:"profile,omitempty"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

type CountLikedYouRequest struct{}

type CountLikedYouResponse struct {
	Count uint64 `json:"count"`
}
