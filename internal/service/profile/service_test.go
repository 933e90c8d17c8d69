package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/service/profile"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func validInput(owner string) profile.ProfileInput {
	job := "Engineer"
	return profile.ProfileInput{
		FirstName:  "Ana",
		Age:        29,
		Bio:        "coffee & climbing",
		City:       "Lisbon",
		Interests:  []string{"climbing", "jazz"},
		Photos:     []string{owner + "/photo_1_1700000000000.jpg", owner + "/photo_2_1700000000001.jpg"},
		LookingFor: "relationship",
		JobTitle:   &job,
	}
}

func TestProfileRoundTrip(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	require.NoError(t, appCtx.DB.Create(&db.Account{ID: "u1", Email: "u1@example.com", PasswordHash: "x"}).Error)
	svc := profile.NewProfileService(appCtx)
	ctx := tu.As("u1")

	created, err := svc.CreateProfile(ctx, &profile.CreateProfileRequest{ProfileInput: validInput("u1")})
	require.NoError(t, err)
	assert.Equal(t, "u1", created.Profile.ID)
	assert.Equal(t, "u1@example.com", created.Profile.Email)

	got, err := svc.GetProfile(tu.As("u2"), &profile.GetProfileRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Profile.FirstName)
	assert.Equal(t, 29, got.Profile.Age)
	assert.Equal(t, []string{"climbing", "jazz"}, []string(got.Profile.Interests))
	assert.Equal(t, []string{"u1/photo_1_1700000000000.jpg", "u1/photo_2_1700000000001.jpg"}, []string(got.Profile.Photos))
	require.NotNil(t, got.Profile.JobTitle)
	assert.Equal(t, "Engineer", *got.Profile.JobTitle)
	assert.Len(t, got.PhotoURLs, 2)

	_, err = svc.CreateProfile(ctx, &profile.CreateProfileRequest{ProfileInput: validInput("u1")})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	in := validInput("u1")
	in.City = "Porto"
	in.JobTitle = nil
	updated, err := svc.UpdateProfile(ctx, &profile.UpdateProfileRequest{ProfileInput: in})
	require.NoError(t, err)
	assert.Equal(t, "Porto", updated.Profile.City)

	mine, err := svc.GetProfile(ctx, &profile.GetProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Porto", mine.Profile.City)
	assert.Nil(t, mine.Profile.JobTitle)
	assert.Equal(t, created.Profile.CreatedAt, mine.Profile.CreatedAt)
}

func TestCreateProfile_Validation(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	svc := profile.NewProfileService(appCtx)

	tests := []struct {
		name   string
		mutate func(*profile.ProfileInput)
		field  string
	}{
		{"missing name", func(in *profile.ProfileInput) { in.FirstName = "" }, "first_name"},
		{"too young", func(in *profile.ProfileInput) { in.Age = 17 }, "age"},
		{"too old", func(in *profile.ProfileInput) { in.Age = 101 }, "age"},
		{"missing city", func(in *profile.ProfileInput) { in.City = " " }, "city"},
		{"missing looking_for", func(in *profile.ProfileInput) { in.LookingFor = "" }, "looking_for"},
		{"one photo", func(in *profile.ProfileInput) { in.Photos = in.Photos[:1] }, "photos"},
		{"foreign photo", func(in *profile.ProfileInput) { in.Photos[1] = "u2/photo_1_1.jpg" }, "photos"},
		{"escaping photo", func(in *profile.ProfileInput) { in.Photos[1] = "u1/../u2/photo.jpg" }, "photos"},
		{"half a location", func(in *profile.ProfileInput) { lat := 38.7; in.Latitude = &lat }, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("u1")
			tt.mutate(&in)
			_, err := svc.CreateProfile(tu.As("u1"), &profile.CreateProfileRequest{ProfileInput: in})
			require.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, status.Convert(err).Message(), tt.field+":")
		})
	}

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.Profile{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateProfile_WithoutProfile(t *testing.T) {
	svc := profile.NewProfileService(tu.NewAppContext(t))
	_, err := svc.UpdateProfile(tu.As("u1"), &profile.UpdateProfileRequest{ProfileInput: validInput("u1")})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
