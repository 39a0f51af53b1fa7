// Package texttospeech defines the synthesis contract consumed by the
// orchestration layer.
package texttospeech

import (
	"context"
	"errors"
	"sync"

	"github.com/dringai/voiceagent/core/audio"
)

var (
	// ErrUnavailable is a transient provider failure after the client's own
	// retry budget is exhausted.
	ErrUnavailable = errors.New("texttospeech: service unavailable")
	// ErrTimeout means the provider did not produce audio within the
	// deadline.
	ErrTimeout = errors.New("texttospeech: request timed out")
	// ErrStreamCancelled is recorded on a stream whose consumer cancelled
	// it before synthesis finished.
	ErrStreamCancelled = errors.New("texttospeech: stream cancelled")
)

// Client synthesizes text into an incremental audio stream. The returned
// stream starts delivering chunks before the full synthesis completes.
type Client interface {
	Synthesize(ctx context.Context, text string) (*SpeechStream, error)
}

// SpeechStream carries synthesized PCM from a provider goroutine to a
// single consumer. The producer calls Push and CloseSend; the consumer
// ranges over Chunks and may Cancel at any point. After Cancel, Push
// returns immediately so the producer never blocks on a gone consumer.
type SpeechStream struct {
	encoding audio.EncodingInfo
	chunks   chan []byte
	done     chan struct{}

	closeOnce  sync.Once
	cancelOnce sync.Once

	mu  sync.Mutex
	err error
}

func NewSpeechStream(encoding audio.EncodingInfo, buffer int) *SpeechStream {
	return &SpeechStream{
		encoding: encoding,
		chunks:   make(chan []byte, buffer),
		done:     make(chan struct{}),
	}
}

func (s *SpeechStream) Encoding() audio.EncodingInfo { return s.encoding }

// Chunks is the consumer side, closed by CloseSend.
func (s *SpeechStream) Chunks() <-chan []byte { return s.chunks }

// Done closes when the consumer cancels the stream.
func (s *SpeechStream) Done() <-chan struct{} { return s.done }

// Push delivers one chunk to the consumer. Returns false once the stream
// has been cancelled; the producer should stop synthesizing.
func (s *SpeechStream) Push(chunk []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// CloseSend ends the stream from the producer side. A non-nil err marks
// the synthesis as failed mid-stream.
func (s *SpeechStream) CloseSend(err error) {
	s.closeOnce.Do(func() {
		if err != nil {
			s.setErr(err)
		}
		close(s.chunks)
	})
}

// Cancel ends the stream from the consumer side. Idempotent. Blocked
// producers unblock through the done channel; undelivered chunks are
// simply dropped.
func (s *SpeechStream) Cancel() {
	s.cancelOnce.Do(func() {
		s.setErr(ErrStreamCancelled)
		close(s.done)
	})
}

// Err reports the terminal state: nil on clean completion,
// ErrStreamCancelled after Cancel, or the producer's failure.
func (s *SpeechStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SpeechStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
