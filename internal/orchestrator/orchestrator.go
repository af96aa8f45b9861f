// Package orchestrator owns the conversation: the message history, the
// loading flag, the pending spoken input and the session lifecycle. It
// calls the chat client, chooses fallback copy when a call fails and hands
// every reply and greeting to the speaker.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alwatan/noura/internal/llm"
	"github.com/alwatan/noura/internal/observability"
	"github.com/alwatan/noura/internal/persona"
)

// Orchestrator coordinates chat, speech input and speech output for one
// client session
type Orchestrator struct {
	chat    llm.Client
	speaker Speaker
	persona *persona.Persona

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	conversationID string
	messages       []Message
	loading        bool
	pending        string
	state          SessionState
	user           *User
	interacted     bool
	generation     uint64 // bumped whenever the history is replaced
	callCancel     context.CancelFunc
	onChange       func(Snapshot)
	logger         zerolog.Logger
}

// New creates an orchestrator whose history holds the seed greeting
func New(chat llm.Client, speaker Speaker, p *persona.Persona) *Orchestrator {
	if p == nil {
		p = persona.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		chat:    chat,
		speaker: speaker,
		persona: p,
		ctx:     ctx,
		cancel:  cancel,
	}
	o.startConversation(p.SeedGreeting)
	return o
}

// startConversation replaces the history with a single assistant message.
// Callers hold o.mu, except New.
func (o *Orchestrator) startConversation(greeting string) {
	o.generation++
	if o.callCancel != nil {
		o.callCancel()
		o.callCancel = nil
	}
	o.loading = false
	o.conversationID = observability.NewConversationID()
	o.logger = observability.WithConversationID(o.conversationID).With().Str("component", "orchestrator").Logger()
	o.messages = []Message{{Role: RoleAssistant, Content: greeting}}
}

// OnChange registers fn to receive a snapshot after every state change. fn
// runs on the goroutine that caused the change and must not block.
func (o *Orchestrator) OnChange(fn func(Snapshot)) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// Snapshot returns a copy of the current state
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		ConversationID: o.conversationID,
		Messages:       append([]Message(nil), o.messages...),
		Loading:        o.loading,
		PendingInput:   o.pending,
		Session:        o.state,
	}
	if o.user != nil {
		u := *o.user
		s.User = &u
	}
	return s
}

// unlockAndNotify releases o.mu and publishes the state it guarded
func (o *Orchestrator) unlockAndNotify() {
	snap := o.snapshotLocked()
	fn := o.onChange
	o.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (o *Orchestrator) speak(text string) {
	if o.speaker == nil || strings.TrimSpace(text) == "" {
		return
	}
	o.speaker.PlayText(text)
}

// SubmitUserMessage sends text to the assistant and blocks until the reply
// has been appended. It returns false without doing anything when text is
// blank or a reply is already pending.
func (o *Orchestrator) SubmitUserMessage(ctx context.Context, text string) bool {
	return o.submit(ctx, text, false)
}

// SubmitPending submits the input recorded from speech, clearing it
func (o *Orchestrator) SubmitPending(ctx context.Context) bool {
	return o.submit(ctx, "", true)
}

func (o *Orchestrator) submit(ctx context.Context, text string, fromPending bool) bool {
	o.mu.Lock()
	if fromPending {
		text = o.pending
	}
	if strings.TrimSpace(text) == "" || o.loading {
		o.mu.Unlock()
		return false
	}
	if fromPending {
		o.pending = ""
	}

	history := make([]llm.Turn, 0, len(o.messages))
	for _, m := range o.messages {
		history = append(history, llm.Turn{Role: chatRole(m.Role), Text: m.Content})
	}

	o.messages = append(o.messages, Message{Role: RoleUser, Content: text})
	o.loading = true
	generation := o.generation
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.ctx, cancel)
	o.callCancel = cancel
	logger := o.logger
	o.unlockAndNotify()

	observability.RecordMessage(string(RoleUser))
	logger.Info().Int("history", len(history)).Msg("Submitting user message")

	start := time.Now()
	result := o.chat.Chat(callCtx, history, text)
	stop()
	cancel()

	o.mu.Lock()
	if o.generation != generation {
		o.mu.Unlock()
		logger.Info().Msg("Discarding reply for a replaced conversation")
		return true
	}

	reply := result.Text
	if !result.OK() {
		reply = o.fallback(result.Failure)
		logger.Warn().
			Str("reason", string(result.Failure.Reason)).
			Msg("Chat failed, using fallback reply")
	}
	o.messages = append(o.messages, Message{Role: RoleAssistant, Content: reply})
	o.loading = false
	o.callCancel = nil
	o.unlockAndNotify()

	observability.RecordMessage(string(RoleAssistant))
	logger.Info().Dur("elapsed", time.Since(start)).Bool("fallback", !result.OK()).Msg("Assistant replied")

	o.speak(reply)
	return true
}

func (o *Orchestrator) fallback(f *llm.Failure) string {
	if f != nil && f.Reason == llm.ReasonEmptyReply {
		return o.persona.Fallback.EmptyReply
	}
	return o.persona.Fallback.RemoteError
}

func chatRole(r Role) string {
	if r == RoleUser {
		return llm.RoleUser
	}
	return llm.RoleModel
}

// ResetConversation replaces the history with the reset greeting. A chat
// call in flight is canceled and its reply dropped. Nothing is spoken.
func (o *Orchestrator) ResetConversation() {
	o.mu.Lock()
	o.startConversation(o.persona.ResetGreeting)
	o.logger.Info().Msg("Conversation reset")
	o.unlockAndNotify()
}

// RecordIncomingUtterance stores recognized speech as the pending input. It
// never submits.
func (o *Orchestrator) RecordIncomingUtterance(text string) {
	o.mu.Lock()
	o.pending = text
	o.unlockAndNotify()
}

// FirstInteraction speaks the welcome on the first user gesture. Later calls
// return false and do nothing.
func (o *Orchestrator) FirstInteraction() bool {
	o.mu.Lock()
	if o.interacted {
		o.mu.Unlock()
		return false
	}
	o.interacted = true
	if o.state == StateAnonymous {
		o.state = StateGreeted
	}
	o.unlockAndNotify()

	o.speak(o.persona.Welcome)
	return true
}

// Login records the user, appends a personalized greeting and speaks it.
// Missing names and identifiers get placeholder values.
func (o *Orchestrator) Login(u User) error {
	if _, err := ParseUserKind(string(u.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(u.Name) == "" {
		u.Name = o.persona.DefaultName(string(u.Kind))
	}
	if u.NationalID == "" && u.Kind == KindReviewer {
		u.NationalID = o.persona.DefaultNationalID
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	greeting := o.persona.Greeting(u.Name)

	o.mu.Lock()
	o.user = &u
	o.state = StateAuthenticated
	o.messages = append(o.messages, Message{Role: RoleAssistant, Content: greeting})
	o.logger.Info().Str("kind", string(u.Kind)).Str("user_id", u.ID).Msg("User logged in")
	o.unlockAndNotify()

	observability.RecordMessage(string(RoleAssistant))
	o.speak(greeting)
	return nil
}

// ErrNotLoggedIn is returned by Logout when no user is logged in
var ErrNotLoggedIn = errors.New("no user is logged in")

// Logout forgets the user, replaces the history with the farewell and
// speaks it
func (o *Orchestrator) Logout() error {
	o.mu.Lock()
	if o.state != StateAuthenticated {
		o.mu.Unlock()
		return ErrNotLoggedIn
	}
	o.user = nil
	o.state = StateAnonymous
	o.startConversation(o.persona.Farewell)
	o.logger.Info().Msg("User logged out")
	o.unlockAndNotify()

	o.speak(o.persona.Farewell)
	return nil
}

// Replay speaks the assistant message at index again
func (o *Orchestrator) Replay(index int) error {
	o.mu.Lock()
	if index < 0 || index >= len(o.messages) {
		n := len(o.messages)
		o.mu.Unlock()
		return fmt.Errorf("message %d out of range [0, %d)", index, n)
	}
	msg := o.messages[index]
	o.mu.Unlock()

	if msg.Role != RoleAssistant {
		return fmt.Errorf("message %d is not an assistant message", index)
	}
	o.speak(msg.Content)
	return nil
}

// Close cancels any chat call in flight. The orchestrator should not be
// used afterwards.
func (o *Orchestrator) Close() {
	o.cancel()
}
