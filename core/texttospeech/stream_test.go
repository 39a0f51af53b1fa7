package texttospeech

import (
	"errors"
	"testing"
	"time"

	"github.com/dringai/voiceagent/core/audio"
)

func TestStreamDeliversChunksInOrder(t *testing.T) {
	stream := NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)

	go func() {
		stream.Push([]byte{1})
		stream.Push([]byte{2})
		stream.Push([]byte{3})
		stream.CloseSend(nil)
	}()

	var got []byte
	for chunk := range stream.Chunks() {
		got = append(got, chunk...)
	}

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("chunks = %v, want [1 2 3]", got)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("clean completion err = %v, want nil", err)
	}
}

func TestCancelUnblocksProducer(t *testing.T) {
	stream := NewSpeechStream(audio.GetDefaultEncodingInfo(), 0)

	pushed := make(chan bool)
	go func() {
		// Unbuffered channel and no consumer: Push blocks until Cancel.
		pushed <- stream.Push([]byte{1})
	}()

	stream.Cancel()

	select {
	case ok := <-pushed:
		if ok {
			t.Fatal("push after cancel reported delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after cancel")
	}

	if !errors.Is(stream.Err(), ErrStreamCancelled) {
		t.Fatalf("err = %v, want ErrStreamCancelled", stream.Err())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	stream := NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)
	stream.Cancel()
	stream.Cancel()
	stream.CloseSend(nil)

	select {
	case <-stream.Done():
	default:
		t.Fatal("done channel not closed after cancel")
	}
}

func TestCloseSendRecordsProducerError(t *testing.T) {
	stream := NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)

	failure := errors.New("socket dropped")
	stream.CloseSend(failure)

	if _, open := <-stream.Chunks(); open {
		t.Fatal("chunks should be closed")
	}
	if !errors.Is(stream.Err(), failure) {
		t.Fatalf("err = %v, want the producer failure", stream.Err())
	}
}

func TestCancelAfterCloseKeepsProducerError(t *testing.T) {
	stream := NewSpeechStream(audio.GetDefaultEncodingInfo(), 4)

	failure := errors.New("socket dropped")
	stream.CloseSend(failure)
	stream.Cancel()

	if !errors.Is(stream.Err(), failure) {
		t.Fatalf("err = %v, want the first recorded error", stream.Err())
	}
}
