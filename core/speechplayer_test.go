package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/texttospeech"
)

func awaitDone(t *testing.T, handle *PlaybackHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatal("playback handle never finished")
	}
}

func TestPlayDrainsStreamThroughDevice(t *testing.T) {
	output := newFakeAudioOutput()
	player := newSpeechPlayer(output)

	stream := texttospeech.NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	go closedChunks([]byte{1, 2}, []byte{3})(stream)

	handle, err := player.Play(context.Background(), stream)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	awaitDone(t, handle)
	if handle.Err() != nil {
		t.Fatalf("handle err = %v, want nil", handle.Err())
	}
	if handle.Interrupted() {
		t.Fatal("uninterrupted playback reported as interrupted")
	}
	if got := output.receivedBytes(); got != 3 {
		t.Fatalf("device received %d bytes, want 3", got)
	}
	if output.stops.Load() != 1 {
		t.Fatalf("device stops = %d, want 1", output.stops.Load())
	}
}

func TestCancelClearsBufferAndFinishes(t *testing.T) {
	output := newFakeAudioOutput()
	player := newSpeechPlayer(output)

	stream := texttospeech.NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	go openUntilCancelled([]byte{1, 2})(stream)

	handle, err := player.Play(context.Background(), stream)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	handle.Cancel()
	awaitDone(t, handle)

	if !handle.Interrupted() {
		t.Fatal("cancelled playback not marked interrupted")
	}
	if output.clears.Load() != 1 {
		t.Fatalf("buffer clears = %d, want 1", output.clears.Load())
	}
	if !errors.Is(stream.Err(), texttospeech.ErrStreamCancelled) {
		t.Fatal("stream was not cancelled")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	output := newFakeAudioOutput()
	player := newSpeechPlayer(output)

	stream := texttospeech.NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	go openUntilCancelled()(stream)

	handle, err := player.Play(context.Background(), stream)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	handle.Cancel()
	handle.Cancel()
	handle.Cancel()
	awaitDone(t, handle)

	if output.clears.Load() != 1 {
		t.Fatalf("buffer clears = %d, want exactly 1", output.clears.Load())
	}
	if output.stops.Load() != 1 {
		t.Fatalf("device stops = %d, want exactly 1", output.stops.Load())
	}
}

func TestDeviceWriteFailureSurfacesAsDeviceError(t *testing.T) {
	output := newFakeAudioOutput()
	output.sendErr = errors.New("device vanished")
	player := newSpeechPlayer(output)

	stream := texttospeech.NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	go closedChunks([]byte{1, 2})(stream)

	handle, err := player.Play(context.Background(), stream)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	awaitDone(t, handle)

	var deviceErr *DeviceError
	if !errors.As(handle.Err(), &deviceErr) {
		t.Fatalf("handle err = %v, want DeviceError", handle.Err())
	}
}

func TestStreamFailureMidPlayback(t *testing.T) {
	output := newFakeAudioOutput()
	player := newSpeechPlayer(output)

	failure := errors.New("socket dropped")
	stream := texttospeech.NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	go func() {
		stream.Push([]byte{1, 2})
		stream.CloseSend(failure)
	}()

	handle, err := player.Play(context.Background(), stream)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	awaitDone(t, handle)
	if !errors.Is(handle.Err(), failure) {
		t.Fatalf("handle err = %v, want the stream failure", handle.Err())
	}
}
