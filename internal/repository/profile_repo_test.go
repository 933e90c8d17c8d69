package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/repository"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func TestDisplayName(t *testing.T) {
	ctx := context.Background()
	dbase := tu.NewDB(t)
	tu.SeedProfile(t, dbase, "u1", "Ana")
	repo := repository.NewProfileRepository(dbase)

	name, ok, err := repo.DisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ana", name)

	_, ok, err = repo.DisplayName(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListCandidates_ExcludesSelfAndLiked(t *testing.T) {
	ctx := context.Background()
	dbase := tu.NewDB(t)
	tu.SeedProfiles(t, dbase, "Ana", "Ben", "Cat", "Dan")
	require.NoError(t, dbase.Model(&db.Profile{}).Where("id = ?", "u4").Update("city", "Porto").Error)

	_, err := repository.NewLikeRepository(dbase).Insert(ctx, &db.Like{LikerID: "u1", LikedID: "u2"})
	require.NoError(t, err)

	repo := repository.NewProfileRepository(dbase)
	profiles, _, err := repo.ListCandidates(ctx, "u1", repository.CandidateFilter{}, nil, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"u3", "u4"}, ids)

	profiles, _, err = repo.ListCandidates(ctx, "u1", repository.CandidateFilter{City: "Porto", MinAge: 18, MaxAge: 30}, nil, 10)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "u4", profiles[0].ID)
}

func TestSaveProfile(t *testing.T) {
	ctx := context.Background()
	dbase := tu.NewDB(t)
	p := tu.SeedProfile(t, dbase, "u1", "Ana")
	repo := repository.NewProfileRepository(dbase)

	p.Bio = "climber"
	p.Age = 31
	require.NoError(t, repo.Save(ctx, &p))

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "climber", got.Bio)
	assert.Equal(t, 31, got.Age)
	assert.Equal(t, []string{"u1/photo_1_1.jpg", "u1/photo_2_2.jpg"}, []string(got.Photos))
}
