package elevenlabs

import (
	"encoding/base64"
	"testing"
)

func TestParseChunkDecodesAudio(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	chunk, final, err := parseChunk([]byte(`{"audio":"` + payload + `","isFinal":false}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if final {
		t.Fatal("non-final message reported as final")
	}
	if len(chunk) != 4 || chunk[0] != 1 || chunk[3] != 4 {
		t.Fatalf("chunk = %v, want [1 2 3 4]", chunk)
	}
}

func TestParseChunkFinalMessage(t *testing.T) {
	chunk, final, err := parseChunk([]byte(`{"isFinal":true}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !final {
		t.Fatal("final message not reported as final")
	}
	if chunk != nil {
		t.Fatalf("final message carried audio: %v", chunk)
	}
}

func TestParseChunkSurfacesAPIError(t *testing.T) {
	if _, _, err := parseChunk([]byte(`{"error":"quota_exceeded","message":"out of credits"}`)); err == nil {
		t.Fatal("expected API error to surface")
	}
}

func TestParseChunkRejectsBadPayloads(t *testing.T) {
	if _, _, err := parseChunk([]byte(`not json`)); err == nil {
		t.Fatal("expected malformed JSON to be rejected")
	}
	if _, _, err := parseChunk([]byte(`{"audio":"?not-base64?"}`)); err == nil {
		t.Fatal("expected malformed base64 to be rejected")
	}
}

func TestNewSynthesisClientValidation(t *testing.T) {
	if _, err := NewSynthesisClient("", WithVoice("voice")); err == nil {
		t.Fatal("expected missing api key to be rejected")
	}
	if _, err := NewSynthesisClient("key"); err == nil {
		t.Fatal("expected missing voice id to be rejected")
	}

	client, err := NewSynthesisClient("key", WithVoice("voice"))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if client.options.modelID != defaultModelID {
		t.Fatalf("model id = %q, want default", client.options.modelID)
	}

	settings := client.options.voiceSettings
	if settings.Speed != 1.1 || settings.SimilarityBoost != 1.0 || !settings.UseSpeakerBoost {
		t.Fatalf("voice settings = %+v", settings)
	}
}
