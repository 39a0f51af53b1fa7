package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dringai/voiceagent/core/texttospeech"
)

const httpChunkSize = 4096

type httpSynthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// startHTTPStream requests the streaming HTTP endpoint and pumps the
// response body into the stream from a goroutine. The request headers are
// validated before returning so an immediate rejection surfaces to the
// caller instead of mid-stream.
func (c *SynthesisClient) startHTTPStream(ctx context.Context, text string, stream *texttospeech.SpeechStream) error {
	body, err := json.Marshal(httpSynthesisRequest{
		Text:          text,
		ModelID:       c.options.modelID,
		VoiceSettings: c.options.voiceSettings,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	streamURL := url.URL{
		Scheme:   "https",
		Host:     apiHost,
		Path:     fmt.Sprintf("/v1/text-to-speech/%s/stream", c.options.voiceID),
		RawQuery: url.Values{"output_format": {"pcm_16000"}}.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, streamURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", texttospeech.ErrUnavailable, err)
	}

	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d: %s", texttospeech.ErrUnavailable, res.StatusCode, payload)
		}
		return fmt.Errorf("synthesis request rejected: status %d: %s", res.StatusCode, payload)
	}

	go pumpBody(res.Body, stream)
	return nil
}

func pumpBody(body io.ReadCloser, stream *texttospeech.SpeechStream) {
	defer body.Close()

	buf := make([]byte, httpChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !stream.Push(chunk) {
				stream.CloseSend(nil)
				return
			}
		}
		if err == io.EOF {
			stream.CloseSend(nil)
			return
		}
		if err != nil {
			stream.CloseSend(fmt.Errorf("%w: %w", texttospeech.ErrUnavailable, err))
			return
		}
	}
}
