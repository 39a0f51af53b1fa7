package orchestration

import (
	"context"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/llms"
	"github.com/dringai/voiceagent/core/speechtotext"
	"github.com/dringai/voiceagent/core/texttospeech"
	"github.com/dringai/voiceagent/core/turnlog"
	"github.com/dringai/voiceagent/core/vad"
)

type OrchestratorOption func(*Orchestrator)

// AudioInput is a capture device producing raw PCM. Chunks arrive on the
// callback from the device's own thread and may not align with frame
// boundaries.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(pcm []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

// AudioOutput is a playback device. SendAudio buffers; Mark registers a
// callback fired when everything queued so far has drained.
type AudioOutput interface {
	Start() error
	Stop() error
	SendAudio(pcm []byte) error
	ClearBuffer() error
	Mark(onDrained func()) error
	EncodingInfo() audio.EncodingInfo
}

// TurnLogger persists completed turns.
type TurnLogger interface {
	Append(record turnlog.Record) error
}

func WithAudioInput(input AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput = input }
}

func WithAudioOutput(output AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = output }
}

func WithTranscriptionClient(client speechtotext.Client) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

func WithDialogueEngine(engine llms.DialogueEngine) OrchestratorOption {
	return func(o *Orchestrator) { o.dialogue = engine }
}

func WithSynthesisClient(client texttospeech.Client) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

func WithTurnLogger(turnLogger TurnLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.turnLogger = turnLogger }
}

func WithDetectorConfig(cfg vad.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.detectorConfig = cfg }
}

// WithFallbackUtterance sets the apology text spoken when a turn fails
// after speech was already transcribed.
func WithFallbackUtterance(text string) OrchestratorOption {
	return func(o *Orchestrator) { o.fallbackUtterance = text }
}

// WithStateCallback observes orchestrator state transitions.
func WithStateCallback(onState func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.onState = onState }
}

// WithTurnCallback observes each turn as it is finalized.
func WithTurnCallback(onTurn func(Turn)) OrchestratorOption {
	return func(o *Orchestrator) { o.onTurn = onTurn }
}
