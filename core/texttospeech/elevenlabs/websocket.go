package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/dringai/voiceagent/core/texttospeech"
)

type streamInputMessage struct {
	Text             string            `json:"text"`
	VoiceSettings    *VoiceSettings    `json:"voice_settings,omitempty"`
	GenerationConfig *generationConfig `json:"generation_config,omitempty"`
}

type generationConfig struct {
	ChunkLengthSchedule []int `json:"chunk_length_schedule"`
}

type streamInputResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *SynthesisClient) dialStreamInput(ctx context.Context) (*websocket.Conn, error) {
	streamURL := url.URL{
		Scheme: "wss",
		Host:   apiHost,
		Path:   fmt.Sprintf("/v1/text-to-speech/%s/stream-input", c.options.voiceID),
		RawQuery: url.Values{
			"model_id":      {c.options.modelID},
			"output_format": {"pcm_16000"},
		}.Encode(),
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.options.connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, streamURL.String(),
		http.Header{"xi-api-key": {c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to elevenlabs: %w", err)
	}
	return conn, nil
}

func (c *SynthesisClient) runWebsocket(ctx context.Context, conn *websocket.Conn, text string, stream *texttospeech.SpeechStream) {
	defer conn.Close()

	if err := c.sendText(conn, text); err != nil {
		stream.CloseSend(fmt.Errorf("%w: %w", texttospeech.ErrUnavailable, err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			stream.CloseSend(fmt.Errorf("%w: %w", texttospeech.ErrTimeout, ctx.Err()))
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				stream.CloseSend(nil)
				return
			}
			stream.CloseSend(fmt.Errorf("%w: %w", texttospeech.ErrUnavailable, err))
			return
		}

		chunk, final, err := parseChunk(raw)
		if err != nil {
			stream.CloseSend(fmt.Errorf("%w: %w", texttospeech.ErrUnavailable, err))
			return
		}

		if chunk != nil && !stream.Push(chunk) {
			// Consumer cancelled, stop reading and drop the socket.
			stream.CloseSend(nil)
			return
		}

		if final {
			stream.CloseSend(nil)
			return
		}
	}
}

func (c *SynthesisClient) sendText(conn *websocket.Conn, text string) error {
	// BOS message carries the voice configuration for the connection.
	if err := conn.WriteJSON(streamInputMessage{
		Text:          " ",
		VoiceSettings: &c.options.voiceSettings,
		GenerationConfig: &generationConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}); err != nil {
		return fmt.Errorf("failed to write voice configuration: %w", err)
	}

	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	if err := conn.WriteJSON(streamInputMessage{Text: text}); err != nil {
		return fmt.Errorf("failed to write synthesis text: %w", err)
	}

	// EOS, nothing more is coming on this connection.
	if err := conn.WriteJSON(streamInputMessage{Text: ""}); err != nil {
		return fmt.Errorf("failed to close synthesis input: %w", err)
	}
	return nil
}

func parseChunk(raw []byte) ([]byte, bool, error) {
	var response streamInputResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal elevenlabs message: %w", err)
	}
	if response.Error != "" {
		return nil, false, errors.New(response.Error)
	}

	var chunk []byte
	if response.Audio != "" {
		decoded, err := base64.StdEncoding.DecodeString(response.Audio)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode audio chunk: %w", err)
		}
		chunk = decoded
	}
	return chunk, response.IsFinal, nil
}
