package account

import (
	"context"
	"regexp"
	"time"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignUpRequest) Validate(ctx context.Context) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.Email == "" {
		problems["email"] = append(problems["email"], "email is required")
	} else if !emailRegex.MatchString(r.Email) {
		problems["email"] = append(problems["email"], "invalid email format")
	}

	if len(r.Password) < 8 {
		problems["password"] = append(problems["password"], "password must be at least 8 characters")
	}
	if len([]byte(r.Password)) > 72 {
		problems["password"] = append(problems["password"], "password length should not exceed 72 bytes")
	}
	return problems
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignInRequest) Validate(ctx context.Context) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.Email == "" {
		problems["email"] = append(problems["email"], "email is required")
	}
	if r.Password == "" {
		problems["password"] = append(problems["password"], "password is required")
	}
	return problems
}

// SessionResponse is returned by SignUp and SignIn.
type SessionResponse struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	// HasProfile tells the client whether onboarding is still needed.
	HasProfile bool `json:"has_profile"`
}

type DeleteAccountRequest struct{}

type DeleteAccountResponse struct{}
