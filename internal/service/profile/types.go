package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/storage"
)

// MinPhotos is the number of photos required to complete onboarding.
const MinPhotos = 2

// ProfileInput carries every owner-editable profile field. It is the body
// of both CreateProfile and UpdateProfile.
type ProfileInput struct {
	FirstName  string   `json:"first_name"`
	Age        int      `json:"age"`
	Bio        string   `json:"bio,omitempty"`
	City       string   `json:"city"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Interests  []string `json:"interests,omitempty"`
	Photos     []string `json:"photos"`
	LookingFor string   `json:"looking_for"`
	Education  *string  `json:"education,omitempty"`
	JobTitle   *string  `json:"job_title,omitempty"`
	Height     *int     `json:"height,omitempty"`
	Smoking    *string  `json:"smoking,omitempty"`
	Drinking   *string  `json:"drinking,omitempty"`
	Religion   *string  `json:"religion,omitempty"`
}

// Validate reports problems with the input of ownerID's profile.
// Photos must be bucket keys under "<ownerID>/".
func (r *ProfileInput) Validate(ctx context.Context, ownerID string) (problems map[string][]string) {
	problems = make(map[string][]string)

	if strings.TrimSpace(r.FirstName) == "" {
		problems["first_name"] = append(problems["first_name"], "first_name is required")
	}
	if len(r.FirstName) > 64 {
		problems["first_name"] = append(problems["first_name"], "first_name is too long")
	}
	if r.Age < 18 || r.Age > 100 {
		problems["age"] = append(problems["age"], "must be between 18 and 100")
	}
	if strings.TrimSpace(r.City) == "" {
		problems["city"] = append(problems["city"], "city is required")
	}
	if strings.TrimSpace(r.LookingFor) == "" {
		problems["looking_for"] = append(problems["looking_for"], "looking_for is required")
	}
	if len(r.Photos) < MinPhotos {
		problems["photos"] = append(problems["photos"], fmt.Sprintf("at least %d photos are required", MinPhotos))
	}
	for _, key := range r.Photos {
		clean, err := storage.CleanKey(key)
		if err != nil || storage.Owner(clean) != ownerID || clean == ownerID {
			problems["photos"] = append(problems["photos"], fmt.Sprintf("%q is not one of your uploads", key))
		}
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		problems["latitude"] = append(problems["latitude"], "latitude and longitude go together")
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		problems["latitude"] = append(problems["latitude"], "must be between -90 and 90")
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		problems["longitude"] = append(problems["longitude"], "must be between -180 and 180")
	}
	return problems
}

// apply copies the input onto p. Identity fields are left alone.
func (r *ProfileInput) apply(p *db.Profile) {
	p.FirstName = strings.TrimSpace(r.FirstName)
	p.Age = r.Age
	p.Bio = r.Bio
	p.City = strings.TrimSpace(r.City)
	p.Latitude = r.Latitude
	p.Longitude = r.Longitude
	p.Interests = append([]string{}, r.Interests...)
	p.Photos = append([]string{}, r.Photos...)
	p.LookingFor = strings.TrimSpace(r.LookingFor)
	p.Education = r.Education
	p.JobTitle = r.JobTitle
	p.Height = r.Height
	p.Smoking = r.Smoking
	p.Drinking = r.Drinking
	p.Religion = r.Religion
}

type CreateProfileRequest struct {
	ProfileInput
}

type UpdateProfileRequest struct {
	ProfileInput
}

type GetProfileRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"user_id,omitempty"`
}

type ProfileResponse struct {
	Profile db.Profile `json:"profile"`
	// PhotoURLs holds the public URL of each photo, in order.
	PhotoURLs []string `json:"photo_urls"`
}
