// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

// User is the public view of a room member. ID equals the session id.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// maxLen <= 0 falls back to MaxUsernameLen.
func NewUser(id UserID, username string, maxLen int) (User, error) {
	name, err := NormalizeUsername(username, maxLen)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Name: name}, nil
}

// NormalizeUsername trims surrounding whitespace and checks the length in runes.
func NormalizeUsername(username string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = MaxUsernameLen
	}
	name := strings.TrimSpace(username)
	if len(name) == 0 {
		return "", ErrUsernameEmpty
	}
	if len([]rune(name)) > maxLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}
