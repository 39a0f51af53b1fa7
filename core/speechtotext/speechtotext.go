// Package speechtotext defines the transcription contract consumed by the
// orchestration layer.
package speechtotext

import (
	"context"
	"errors"

	"github.com/dringai/voiceagent/core/audio"
)

var (
	// ErrEmptyResult means the provider returned no usable transcript for
	// the utterance. The caller should drop the turn, not retry.
	ErrEmptyResult = errors.New("speechtotext: empty transcript")
	// ErrUnavailable is a transient provider failure after the client's own
	// retry budget is exhausted.
	ErrUnavailable = errors.New("speechtotext: service unavailable")
	// ErrTimeout means the provider did not answer within the deadline.
	ErrTimeout = errors.New("speechtotext: request timed out")
)

// Client transcribes one sealed utterance into text. Implementations own
// their retry policy; errors returned here are terminal for the utterance.
type Client interface {
	Transcribe(ctx context.Context, utterance *audio.Utterance) (string, error)
}
