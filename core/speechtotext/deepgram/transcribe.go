// Package deepgram transcribes sealed utterances through Deepgram's
// prerecorded REST endpoint.
package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	prerecorded "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.opentelemetry.io/otel/codes"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/speechtotext"
	"github.com/dringai/voiceagent/internal/backoff"
)

const defaultRequestTimeout = 10 * time.Second

type TranscriptionClient struct {
	client  *prerecorded.Client
	options transcriptionClientOptions
}

type transcriptionClientOptions struct {
	model          string
	language       string
	requestTimeout time.Duration
	retryPolicy    backoff.Policy
}

type TranscriptionClientOption func(*transcriptionClientOptions)

func WithModel(model string) TranscriptionClientOption {
	return func(o *transcriptionClientOptions) { o.model = model }
}

func WithLanguage(language string) TranscriptionClientOption {
	return func(o *transcriptionClientOptions) { o.language = language }
}

func WithRequestTimeout(timeout time.Duration) TranscriptionClientOption {
	return func(o *transcriptionClientOptions) { o.requestTimeout = timeout }
}

func WithRetryPolicy(policy backoff.Policy) TranscriptionClientOption {
	return func(o *transcriptionClientOptions) { o.retryPolicy = policy }
}

func NewTranscriptionClient(apiKey string, opts ...TranscriptionClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	options := transcriptionClientOptions{
		model:          "nova-2",
		language:       "en",
		requestTimeout: defaultRequestTimeout,
		retryPolicy:    backoff.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	rest := listen.NewREST(apiKey, &interfaces.ClientOptions{})

	return &TranscriptionClient{
		client:  prerecorded.New(rest),
		options: options,
	}, nil
}

// Transcribe submits the utterance as WAV and returns the top transcript.
// Transient failures are retried within the client's backoff budget;
// timeouts are retried once.
func (c *TranscriptionClient) Transcribe(ctx context.Context, utterance *audio.Utterance) (string, error) {
	ctx, span := tracer.Start(ctx, "deepgram.Transcribe")
	defer span.End()

	if utterance.Empty() {
		return "", speechtotext.ErrEmptyResult
	}
	wav := utterance.WAV()

	// Unavailable retries within the backoff budget, timeouts only once.
	timeouts := 0
	retryable := func(err error) bool {
		if errors.Is(err, speechtotext.ErrTimeout) {
			timeouts++
			return timeouts <= 1
		}
		return errors.Is(err, speechtotext.ErrUnavailable)
	}

	var transcript string
	err := c.options.retryPolicy.Execute(ctx, retryable, func(ctx context.Context) error {
		var err error
		transcript, err = c.transcribeOnce(ctx, wav)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", err
	}

	if transcript == "" {
		logger.InfoContext(ctx, "no transcript for utterance", "audio_bytes", len(wav))
		return "", speechtotext.ErrEmptyResult
	}
	return transcript, nil
}

func (c *TranscriptionClient) transcribeOnce(ctx context.Context, wav []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.requestTimeout)
	defer cancel()

	res, err := c.client.FromStream(ctx, bytes.NewReader(wav),
		&interfaces.PreRecordedTranscriptionOptions{
			Model:       c.options.model,
			Language:    c.options.language,
			SmartFormat: true,
			Punctuate:   true,
		})
	if err != nil {
		return "", classify(err)
	}

	if res == nil || len(res.Results.Channels) == 0 ||
		len(res.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript), nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", speechtotext.ErrTimeout, err)
	case isTransient(err):
		return fmt.Errorf("%w: %w", speechtotext.ErrUnavailable, err)
	}
	return fmt.Errorf("transcription request failed: %w", err)
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{"500", "502", "503", "504", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
