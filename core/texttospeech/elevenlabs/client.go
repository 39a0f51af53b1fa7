// Package elevenlabs implements streaming speech synthesis against the
// ElevenLabs API. The stream-input websocket is the primary transport;
// when the socket cannot be established the client falls back to the
// streaming HTTP endpoint for the request.
package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/texttospeech"
)

const (
	defaultModelID = "eleven_multilingual_v2"
	apiHost        = "api.elevenlabs.io"

	// Headroom for the provider to start producing audio; chunks keep
	// arriving past this only if the stream is already flowing.
	defaultConnectTimeout = 5 * time.Second
)

// VoiceSettings mirror the synthesis knobs the API exposes.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.0,
		SimilarityBoost: 1.0,
		Style:           0.0,
		UseSpeakerBoost: true,
		Speed:           1.1,
	}
}

type SynthesisClient struct {
	apiKey     string
	httpClient *http.Client
	options    synthesisClientOptions
}

type synthesisClientOptions struct {
	voiceID        string
	modelID        string
	voiceSettings  VoiceSettings
	connectTimeout time.Duration
	encoding       audio.EncodingInfo
}

type SynthesisClientOption func(*synthesisClientOptions)

func WithVoice(voiceID string) SynthesisClientOption {
	return func(o *synthesisClientOptions) { o.voiceID = voiceID }
}

func WithModelID(modelID string) SynthesisClientOption {
	return func(o *synthesisClientOptions) { o.modelID = modelID }
}

func WithVoiceSettings(settings VoiceSettings) SynthesisClientOption {
	return func(o *synthesisClientOptions) { o.voiceSettings = settings }
}

func WithConnectTimeout(timeout time.Duration) SynthesisClientOption {
	return func(o *synthesisClientOptions) { o.connectTimeout = timeout }
}

func NewSynthesisClient(apiKey string, opts ...SynthesisClientOption) (*SynthesisClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not found")
	}

	options := synthesisClientOptions{
		modelID:        defaultModelID,
		voiceSettings:  DefaultVoiceSettings(),
		connectTimeout: defaultConnectTimeout,
		encoding:       audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.voiceID == "" {
		return nil, fmt.Errorf("elevenlabs voice id not set")
	}

	return &SynthesisClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		options:    options,
	}, nil
}

// Synthesize starts producing audio for text and returns the stream as
// soon as the transport is established. Chunks arrive incrementally; the
// stream is closed by the producer goroutine when synthesis finishes.
func (c *SynthesisClient) Synthesize(ctx context.Context, text string) (*texttospeech.SpeechStream, error) {
	ctx, span := tracer.Start(ctx, "elevenlabs.Synthesize")
	defer span.End()

	stream := texttospeech.NewSpeechStream(c.options.encoding, 32)

	conn, err := c.dialStreamInput(ctx)
	if err == nil {
		go c.runWebsocket(ctx, conn, text, stream)
		return stream, nil
	}

	logger.WarnContext(ctx, "stream-input websocket unavailable, falling back to http streaming", "error", err)

	if fallbackErr := c.startHTTPStream(ctx, text, stream); fallbackErr != nil {
		span.RecordError(fallbackErr)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, fallbackErr
	}
	return stream, nil
}
