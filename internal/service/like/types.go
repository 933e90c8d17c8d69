package like

import (
	"context"

	"github.com/oggyb/heartline/internal/db"
)

type LikeRequest struct {
	LikedID     string `json:"liked_id"`
	IsSuperLike bool   `json:"is_super_like"`
}

func (r *LikeRequest) Validate(ctx context.Context, likerID string) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.LikedID == "" {
		problems["liked_id"] = append(problems["liked_id"], "liked_id is required")
	}
	if r.LikedID != "" && r.LikedID == likerID {
		problems["liked_id"] = append(problems["liked_id"], "cannot like yourself")
	}
	return problems
}

type LikeResponse struct {
	Like db.Like `json:"like"`
	// Match is set when the pair is matched, now or earlier.
	Match   *db.Match `json:"match,omitempty"`
	IsMatch bool      `json:"is_match"`
	// NewMatch is true only for the like that created the match.
	NewMatch bool `json:"new_match"`
}

type PassPendingLikeRequest struct {
	LikerID string `json:"liker_id"`
}

func (r *PassPendingLikeRequest) Validate(ctx context.Context) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.LikerID == "" {
		problems["liker_id"] = append(problems["liker_id"], "liker_id is required")
	}
	return problems
}

type PassPendingLikeResponse struct {
	Removed bool `json:"removed"`
}
