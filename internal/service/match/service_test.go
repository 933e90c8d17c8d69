package match_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/heartline/internal/service/match"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func TestListAndGetMatch(t *testing.T) {
	ctx := context.Background()
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben", "Cat")
	svc := match.NewMatchService(appCtx)

	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}, {"u3", "u1"}, {"u1", "u3"}} {
		_, err := appCtx.Pipeline.Like(ctx, pair[0], pair[1], false)
		require.NoError(t, err)
	}

	list, err := svc.ListMatches(tu.As("u1"), &match.ListMatchesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Matches, 2)
	others := []string{list.Matches[0].OtherUserID, list.Matches[1].OtherUserID}
	assert.ElementsMatch(t, []string{"u2", "u3"}, others)
	for _, m := range list.Matches {
		require.NotNil(t, m.OtherUser)
		assert.Equal(t, m.OtherUserID, m.OtherUser.ID)
	}

	list, err = svc.ListMatches(tu.As("u2"), &match.ListMatchesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Matches, 1)
	matchID := list.Matches[0].Match.ID

	view, err := svc.GetMatch(tu.As("u2"), &match.GetMatchRequest{MatchID: matchID})
	require.NoError(t, err)
	assert.Equal(t, "u1", view.OtherUserID)
	assert.Equal(t, "Ana", view.OtherUser.FirstName)

	_, err = svc.GetMatch(tu.As("u3"), &match.GetMatchRequest{MatchID: matchID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = svc.GetMatch(tu.As("u2"), &match.GetMatchRequest{MatchID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
