package orchestration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dringai/voiceagent/core/texttospeech"
)

// PlaybackHandle tracks one turn's audio from first chunk to drain.
// Cancel is idempotent and safe from any goroutine; Done closes exactly
// once, whether playback drained, was cancelled, or failed.
type PlaybackHandle struct {
	stream *texttospeech.SpeechStream
	output AudioOutput

	done        chan struct{}
	finishOnce  sync.Once
	cancelOnce  sync.Once
	interrupted atomic.Bool

	mu  sync.Mutex
	err error
}

func (h *PlaybackHandle) Done() <-chan struct{} { return h.done }

func (h *PlaybackHandle) Interrupted() bool { return h.interrupted.Load() }

func (h *PlaybackHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Cancel stops playback immediately: the synthesis stream is cancelled
// and the device buffer is cleared, so audio cuts off within one frame
// period rather than draining.
func (h *PlaybackHandle) Cancel() {
	h.cancelOnce.Do(func() {
		h.interrupted.Store(true)
		h.stream.Cancel()
		if err := h.output.ClearBuffer(); err != nil {
			logger.Warn("failed to clear playback buffer", "error", err)
		}
		h.finish(nil)
	})
}

func (h *PlaybackHandle) finish(err error) {
	h.finishOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()

		if stopErr := h.output.Stop(); stopErr != nil {
			logger.Warn("failed to stop playback device", "error", stopErr)
		}
		close(h.done)
	})
}

// speechPlayer feeds synthesis streams to the output device, one handle
// at a time.
type speechPlayer struct {
	output AudioOutput
}

func newSpeechPlayer(output AudioOutput) *speechPlayer {
	return &speechPlayer{output: output}
}

// Play starts the device and pumps the stream into it from a goroutine.
// The handle's Done channel closes only after the final chunk has drained
// out of the device, not when the last chunk is queued.
func (p *speechPlayer) Play(ctx context.Context, stream *texttospeech.SpeechStream) (*PlaybackHandle, error) {
	if err := p.output.Start(); err != nil {
		stream.Cancel()
		return nil, &DeviceError{Device: "playback", Err: err}
	}

	handle := &PlaybackHandle{
		stream: stream,
		output: p.output,
		done:   make(chan struct{}),
	}

	go p.pump(ctx, stream, handle)
	return handle, nil
}

func (p *speechPlayer) pump(ctx context.Context, stream *texttospeech.SpeechStream, handle *PlaybackHandle) {
	for {
		select {
		case <-stream.Done():
			// Cancelled by the handle; it finishes itself.
			return

		case chunk, ok := <-stream.Chunks():
			if !ok {
				p.drain(ctx, stream, handle)
				return
			}
			if err := p.output.SendAudio(chunk); err != nil {
				stream.Cancel()
				handle.finish(&DeviceError{Device: "playback", Err: err})
				return
			}
		}
	}
}

func (p *speechPlayer) drain(ctx context.Context, stream *texttospeech.SpeechStream, handle *PlaybackHandle) {

	if err := stream.Err(); err != nil {
		logger.WarnContext(ctx, "synthesis stream ended early", "error", err)
		handle.finish(err)
		return
	}

	// All chunks queued; finish once the device buffer drains.
	if err := p.output.Mark(func() { handle.finish(nil) }); err != nil {
		handle.finish(&DeviceError{Device: "playback", Err: err})
	}
}
