// Package openai implements the dialogue engine on OpenAI chat
// completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/dringai/voiceagent/core/llms"
	"github.com/dringai/voiceagent/internal/backoff"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultRequestTimeout = 15 * time.Second
	defaultMaxTokens      = 120
	defaultTemperature    = 0.4
)

const defaultInstructions = "Sen DringAI sirketinde calisan ve turkce konusan bir musteri hizmetleri asistanisin. Kisa, net ve nazik cevaplar ver."

type Client struct {
	client  openai.Client
	options clientOptions
}

type clientOptions struct {
	model          string
	instructions   string
	maxTokens      int64
	temperature    float64
	requestTimeout time.Duration
	retryPolicy    backoff.Policy
}

type ClientOption func(*clientOptions)

func WithModel(model string) ClientOption {
	return func(o *clientOptions) { o.model = model }
}

// WithInstructions replaces the system instruction sent on every request.
func WithInstructions(instructions string) ClientOption {
	return func(o *clientOptions) { o.instructions = instructions }
}

func WithMaxTokens(tokens int64) ClientOption {
	return func(o *clientOptions) { o.maxTokens = tokens }
}

func WithTemperature(temperature float64) ClientOption {
	return func(o *clientOptions) { o.temperature = temperature }
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

func WithRetryPolicy(policy backoff.Policy) ClientOption {
	return func(o *clientOptions) { o.retryPolicy = policy }
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not found")
	}

	options := clientOptions{
		model:          defaultModel,
		instructions:   defaultInstructions,
		maxTokens:      defaultMaxTokens,
		temperature:    defaultTemperature,
		requestTimeout: defaultRequestTimeout,
		retryPolicy:    backoff.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		// Retries run through the shared backoff policy instead.
		option.WithMaxRetries(0),
	)

	return &Client{client: client, options: options}, nil
}

// Respond sends the full conversation and returns the assistant's reply.
// The provider keeps no state between calls.
func (c *Client) Respond(ctx context.Context, history []llms.Exchange, userText string) (string, error) {
	ctx, span := tracer.Start(ctx, "openai.Respond")
	defer span.End()

	messages := c.buildMessages(history, userText)

	var reply string
	err := c.options.retryPolicy.Execute(ctx, retryable, func(ctx context.Context) error {
		var err error
		reply, err = c.respondOnce(ctx, messages)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dialogue request failed")
		return "", err
	}
	return reply, nil
}

func (c *Client) buildMessages(history []llms.Exchange, userText string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2*len(history)+2)
	messages = append(messages, openai.SystemMessage(c.options.instructions))
	for _, exchange := range history {
		messages = append(messages,
			openai.UserMessage(exchange.UserText),
			openai.AssistantMessage(exchange.AssistantText),
		)
	}
	return append(messages, openai.UserMessage(userText))
}

func (c *Client) respondOnce(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.requestTimeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.options.model),
		Messages:    messages,
		MaxTokens:   openai.Int(c.options.maxTokens),
		Temperature: openai.Float(c.options.temperature),
	})
	if err != nil {
		return "", classify(err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", llms.ErrUnavailable)
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		logger.InfoContext(ctx, "completion refused", "finish_reason", choice.FinishReason)
		return "", llms.ErrContentRejected
	}

	reply := strings.TrimSpace(choice.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", llms.ErrUnavailable)
	}
	return reply, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", llms.ErrTimeout, err)
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests,
			apierr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", llms.ErrUnavailable, err)
		}
		return fmt.Errorf("dialogue request rejected: %w", err)
	}
	return fmt.Errorf("%w: %w", llms.ErrUnavailable, err)
}

func retryable(err error) bool {
	return errors.Is(err, llms.ErrUnavailable) || errors.Is(err, llms.ErrTimeout)
}
