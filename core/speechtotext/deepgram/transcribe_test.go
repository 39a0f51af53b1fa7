package deepgram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/speechtotext"
)

func TestTranscribeRejectsEmptyUtterance(t *testing.T) {
	client, err := NewTranscriptionClient("dg-key")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	// No audio was ever appended; the request must short-circuit before
	// reaching the network.
	utterance := audio.NewUtterance(audio.GetDefaultEncodingInfo(), time.Now())
	_ = utterance.Seal(audio.SealReasonFlush, time.Now())

	if _, err := client.Transcribe(context.Background(), utterance); !errors.Is(err, speechtotext.ErrEmptyResult) {
		t.Fatalf("empty utterance = %v, want ErrEmptyResult", err)
	}
}

func TestClassifyMapsProviderErrors(t *testing.T) {
	if err := classify(context.DeadlineExceeded); !errors.Is(err, speechtotext.ErrTimeout) {
		t.Fatalf("deadline = %v, want ErrTimeout", err)
	}

	if err := classify(fmt.Errorf("unexpected response: 503 Service Unavailable")); !errors.Is(err, speechtotext.ErrUnavailable) {
		t.Fatalf("503 = %v, want ErrUnavailable", err)
	}

	if err := classify(fmt.Errorf("unexpected response: 429 Too Many Requests")); !errors.Is(err, speechtotext.ErrUnavailable) {
		t.Fatalf("429 = %v, want ErrUnavailable", err)
	}

	err := classify(fmt.Errorf("unexpected response: 401 Unauthorized"))
	if errors.Is(err, speechtotext.ErrUnavailable) || errors.Is(err, speechtotext.ErrTimeout) {
		t.Fatalf("401 = %v, should not be transient", err)
	}
}

func TestNewTranscriptionClientRequiresAPIKey(t *testing.T) {
	if _, err := NewTranscriptionClient(""); err == nil {
		t.Fatal("expected missing api key to be rejected")
	}
}

func TestOptionsApply(t *testing.T) {
	client, err := NewTranscriptionClient("dg-key",
		WithModel("nova-3"),
		WithLanguage("tr"),
	)
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if client.options.model != "nova-3" {
		t.Fatalf("model = %q, want nova-3", client.options.model)
	}
	if client.options.language != "tr" {
		t.Fatalf("language = %q, want tr", client.options.language)
	}
}
