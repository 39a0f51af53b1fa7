package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openaisdk "github.com/openai/openai-go/v2"

	"github.com/dringai/voiceagent/core/llms"
)

func TestBuildMessagesOrdersHistory(t *testing.T) {
	client, err := NewClient("test-key", WithInstructions("be brief"))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	history := []llms.Exchange{
		{UserText: "hello", AssistantText: "hi"},
		{UserText: "opening hours?", AssistantText: "9 to 5"},
	}
	messages := client.buildMessages(history, "thanks")

	// System + two pairs + the new user message.
	if len(messages) != 6 {
		t.Fatalf("message count = %d, want 6", len(messages))
	}
	if messages[0].OfSystem == nil {
		t.Fatal("first message is not the system instruction")
	}
	if messages[1].OfUser == nil || messages[2].OfAssistant == nil {
		t.Fatal("history pair 1 out of order")
	}
	if messages[3].OfUser == nil || messages[4].OfAssistant == nil {
		t.Fatal("history pair 2 out of order")
	}
	if messages[5].OfUser == nil {
		t.Fatal("final message is not the new user text")
	}
}

func TestClassifyMapsProviderErrors(t *testing.T) {
	if err := classify(context.DeadlineExceeded); !errors.Is(err, llms.ErrTimeout) {
		t.Fatalf("deadline = %v, want ErrTimeout", err)
	}

	rateLimited := &openaisdk.Error{StatusCode: http.StatusTooManyRequests}
	if err := classify(rateLimited); !errors.Is(err, llms.ErrUnavailable) {
		t.Fatalf("429 = %v, want ErrUnavailable", err)
	}

	upstream := &openaisdk.Error{StatusCode: http.StatusBadGateway}
	if err := classify(upstream); !errors.Is(err, llms.ErrUnavailable) {
		t.Fatalf("502 = %v, want ErrUnavailable", err)
	}

	badRequest := &openaisdk.Error{StatusCode: http.StatusBadRequest}
	if err := classify(badRequest); errors.Is(err, llms.ErrUnavailable) || errors.Is(err, llms.ErrTimeout) {
		t.Fatalf("400 = %v, should not be transient", err)
	}
}

func TestRetryableCoversTransientsOnly(t *testing.T) {
	if !retryable(llms.ErrUnavailable) || !retryable(llms.ErrTimeout) {
		t.Fatal("transient errors should be retryable")
	}
	if retryable(llms.ErrContentRejected) {
		t.Fatal("content rejection must not be retried")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected missing api key to be rejected")
	}
}
