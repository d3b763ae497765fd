package domain

import (
	"errors"
	"strings"
	"time"
)

const MaxMessageLen = 2000

var (
	ErrMessageEmpty   = errors.New("message body empty")
	ErrMessageTooLong = errors.New("message body too long")
)

type MessageID string

// Message is a posted chat line. The author is snapshotted at post time.
type Message struct {
	ID        MessageID `json:"id"`
	User      User      `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateBody rejects blank bodies and bodies over maxLen runes.
// maxLen <= 0 falls back to MaxMessageLen.
func ValidateBody(body string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	if strings.TrimSpace(body) == "" {
		return ErrMessageEmpty
	}
	if len([]rune(body)) > maxLen {
		return ErrMessageTooLong
	}
	return nil
}
