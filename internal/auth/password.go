package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Backend error texts. They are matched by substring in FriendlyMessage so
// wrapped errors still translate.
var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrAlreadyRegistered  = errors.New("User already registered")
)

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword returns ErrInvalidCredentials when password does not match.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var friendly = []struct {
	contains string
	message  string
}{
	{"Invalid login credentials", "Invalid email or password. Please try again."},
	{"User already registered", "An account with this email already exists. Try signing in instead."},
}

// FriendlyMessage translates known authentication failures into text fit
// for end users. Unknown errors fall back to their raw message.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()
	for _, f := range friendly {
		if strings.Contains(raw, f.contains) {
			return f.message
		}
	}
	return raw
}
