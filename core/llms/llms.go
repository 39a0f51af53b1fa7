// Package llms defines the dialogue contract consumed by the orchestration
// layer.
package llms

import (
	"context"
	"errors"
)

var (
	// ErrContentRejected means the provider refused to answer (moderation,
	// refusal). Not retryable; the caller substitutes a fallback utterance.
	ErrContentRejected = errors.New("llms: content rejected")
	// ErrUnavailable is a transient provider failure after the client's own
	// retry budget is exhausted.
	ErrUnavailable = errors.New("llms: service unavailable")
	// ErrTimeout means the provider did not answer within the deadline.
	ErrTimeout = errors.New("llms: request timed out")
)

// Exchange is one completed user/assistant pair from earlier in the
// conversation.
type Exchange struct {
	UserText      string
	AssistantText string
}

// DialogueEngine produces the assistant's reply to userText given the full
// conversation so far. The engine is stateless across calls; history is
// resent every time.
type DialogueEngine interface {
	Respond(ctx context.Context, history []Exchange, userText string) (string, error)
}
