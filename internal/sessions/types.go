package sessions

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTitle names a session before its first message.
	DefaultTitle = "New Chat"
	// AnonymousUser owns sessions created without an X-User-ID header.
	AnonymousUser = "anonymous"
	// titleRunes is how much of the first message becomes the title.
	titleRunes = 30
)

// ErrNotFound is returned for sessions that do not exist or belong to
// another user.
var ErrNotFound = errors.New("session not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a stored conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn of a session. Seq orders messages within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TitleFor derives a session title from its first message.
func TitleFor(message string) string {
	if utf8.RuneCountInString(message) > titleRunes {
		message = string([]rune(message)[:titleRunes])
	}
	return message + "..."
}
