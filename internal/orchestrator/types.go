package orchestrator

import (
	"fmt"
	"strings"

	"github.com/alwatan/noura/internal/playback"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history
type Message struct {
	Role    Role
	Content string
}

// UserKind is the portal a user logged in through
type UserKind string

const (
	KindReviewer        UserKind = "reviewer"
	KindManager         UserKind = "manager"
	KindServiceProvider UserKind = "service_provider"
)

// ParseUserKind accepts a kind name, case-insensitively, with - or _
func ParseUserKind(s string) (UserKind, error) {
	kind := UserKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch kind {
	case KindReviewer, KindManager, KindServiceProvider:
		return kind, nil
	}
	return "", fmt.Errorf("unknown user kind %q", s)
}

// User is the client-side identity of whoever logged in. Nothing about it
// is verified.
type User struct {
	Kind       UserKind
	Name       string
	NationalID string
	Phone      string
	ID         string
}

// SessionState is the position in the session lifecycle
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateGreeted
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateGreeted:
		return "greeted"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Snapshot is a render-ready copy of the orchestrator state
type Snapshot struct {
	ConversationID string
	Messages       []Message
	Loading        bool
	PendingInput   string
	Session        SessionState
	User           *User
}

// Speaker speaks assistant text
type Speaker interface {
	PlayText(text string) *playback.Session
}
