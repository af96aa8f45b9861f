package llm

import (
	"context"
)

// Role names as the chat model expects them
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior message sent as conversation context
type Turn struct {
	Role string // RoleUser or RoleModel
	Text string
}

// FailureReason classifies why a chat call produced no usable reply
type FailureReason string

const (
	ReasonEmptyReply  FailureReason = "empty_reply"
	ReasonRemoteError FailureReason = "remote_error"
	ReasonTimeout     FailureReason = "timeout"
	ReasonCircuitOpen FailureReason = "circuit_open"
	ReasonCanceled    FailureReason = "canceled"
)

// Failure describes a chat call that did not produce text
type Failure struct {
	Reason FailureReason
	Err    error // nil for ReasonEmptyReply
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ChatResult carries either the reply text or the failure. Callers choose
// what to show on failure.
type ChatResult struct {
	Text    string
	Failure *Failure
}

// OK reports whether the result carries a reply
func (r ChatResult) OK() bool {
	return r.Failure == nil
}

// Client is the chat side of the remote assistant
type Client interface {
	// Chat sends the prior history plus a new user message. It never returns
	// a bare error; failures are reported in the result.
	Chat(ctx context.Context, history []Turn, message string) ChatResult
}
