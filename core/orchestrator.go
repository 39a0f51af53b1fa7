// Package orchestration runs the conversation loop: it owns the session
// state machine and sequences capture, transcription, dialogue, synthesis
// and playback into strictly ordered turns.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/llms"
	"github.com/dringai/voiceagent/core/speechtotext"
	"github.com/dringai/voiceagent/core/texttospeech"
	"github.com/dringai/voiceagent/core/turnlog"
	"github.com/dringai/voiceagent/core/vad"
)

type State string

const (
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateThinking     State = "thinking"
	StateSynthesizing State = "synthesizing"
	StatePlaying      State = "playing"
	StateInterrupted  State = "interrupted"
	StateEnded        State = "ended"
)

const defaultFallbackUtterance = "I'm sorry, I didn't manage to answer that. Could you say it again?"

type Orchestrator struct {
	audioInput   AudioInput
	audioOutput  AudioOutput
	speechToText speechtotext.Client
	dialogue     llms.DialogueEngine
	textToSpeech texttospeech.Client
	turnLogger   TurnLogger

	detectorConfig    vad.Config
	fallbackUtterance string

	onState func(State)
	onTurn  func(Turn)

	session  *Session
	detector *vad.Detector
	capture  *capturePipeline
	player   *speechPlayer

	state State

	// loggingDegraded latches after the first storage failure so each
	// subsequent turn doesn't re-log the same complaint at error level.
	loggingDegraded bool
}

func NewOrchestrator(opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{
		detectorConfig:    vad.DefaultConfig(),
		fallbackUtterance: defaultFallbackUtterance,
		state:             StateListening,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case o.audioInput == nil:
		return nil, fmt.Errorf("audio input is required")
	case o.audioOutput == nil:
		return nil, fmt.Errorf("audio output is required")
	case o.speechToText == nil:
		return nil, fmt.Errorf("transcription client is required")
	case o.dialogue == nil:
		return nil, fmt.Errorf("dialogue engine is required")
	case o.textToSpeech == nil:
		return nil, fmt.Errorf("synthesis client is required")
	}

	o.detectorConfig.Encoding = o.audioInput.EncodingInfo()
	detector, err := vad.New(o.detectorConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid detector configuration: %w", err)
	}
	o.detector = detector

	return o, nil
}

func (o *Orchestrator) Session() *Session { return o.session }

// Run drives the conversation until ctx is cancelled or a device fails.
// A cancelled context is a clean shutdown and returns nil; device
// failures return a *DeviceError.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.session = NewSession(time.Now())
	o.capture = newCapturePipeline(o.audioInput, o.detector, o.detectorConfig.FrameDuration)
	o.player = newSpeechPlayer(o.audioOutput)

	logger.InfoContext(ctx, "session started", "session_id", o.session.ID)

	captureCtx, cancelCapture := context.WithCancel(ctx)
	defer cancelCapture()
	go o.capture.run(captureCtx)

	defer o.setState(StateEnded)
	o.setState(StateListening)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-o.capture.fatal:
			return err

		case utterance, ok := <-o.capture.utterances:
			if !ok {
				// A fatal capture failure also closes the channel.
				select {
				case err := <-o.capture.fatal:
					return err
				default:
					return nil
				}
			}
			if err := o.processTurn(ctx, utterance); err != nil {
				return err
			}
			o.setState(StateListening)
		}
	}
}

// processTurn runs the sequential pipeline for one sealed utterance. Only
// device errors propagate; everything else resolves within the turn.
func (o *Orchestrator) processTurn(ctx context.Context, utterance *audio.Utterance) error {
	ctx, span := tracer.Start(ctx, "orchestration.processTurn")
	defer span.End()

	o.setState(StateTranscribing)
	userText, err := o.speechToText.Transcribe(ctx, utterance)
	if err != nil {
		if !errors.Is(err, speechtotext.ErrEmptyResult) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transcription failed")
			logger.WarnContext(ctx, "transcription failed, dropping utterance", "error", err)
		}
		// No usable user text, no turn.
		return nil
	}

	turn := o.session.BeginTurn(utterance.StartedAt, userText)
	turn.Status = TurnCompleted

	o.setState(StateThinking)
	reply, err := o.dialogue.Respond(ctx, o.session.History(), userText)
	switch {
	case errors.Is(err, llms.ErrContentRejected):
		logger.InfoContext(ctx, "dialogue engine rejected content, using fallback", "turn_id", turn.ID)
		reply = o.fallbackUtterance
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "dialogue failed")
		logger.WarnContext(ctx, "dialogue failed", "turn_id", turn.ID, "error", err)
		turn.Status = TurnErrored
		reply = o.fallbackUtterance
	}
	if turn.Status != TurnErrored {
		turn.AssistantText = reply
	}

	o.setState(StateSynthesizing)
	stream, err := o.textToSpeech.Synthesize(ctx, reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		logger.WarnContext(ctx, "synthesis failed", "turn_id", turn.ID, "error", err)
		turn.Status = TurnErrored
		o.finalizeTurn(ctx, turn)
		return nil
	}

	o.setState(StatePlaying)
	playbackErr := o.play(ctx, stream, &turn)
	o.finalizeTurn(ctx, turn)

	var deviceErr *DeviceError
	if errors.As(playbackErr, &deviceErr) {
		span.RecordError(playbackErr)
		span.SetStatus(codes.Error, "playback device failed")
		return playbackErr
	}
	return nil
}

// play runs one turn's audio and resolves its status: completed on full
// drain, interrupted on barge-in or shutdown, errored if the stream
// failed mid-way. Device errors are returned, not absorbed.
func (o *Orchestrator) play(ctx context.Context, stream *texttospeech.SpeechStream, turn *Turn) error {
	o.capture.drainBargeIn()
	o.detector.SetPlaybackActive(true)
	defer o.detector.SetPlaybackActive(false)

	handle, err := o.player.Play(ctx, stream)
	if err != nil {
		turn.Status = TurnErrored
		return err
	}

	select {
	case <-o.capture.bargeIn:
		logger.InfoContext(ctx, "barge-in, cancelling playback", "turn_id", turn.ID)
		handle.Cancel()
		<-handle.Done()
		o.setState(StateInterrupted)
		turn.Status = TurnInterrupted
		return nil

	case <-ctx.Done():
		handle.Cancel()
		<-handle.Done()
		o.setState(StateInterrupted)
		turn.Status = TurnInterrupted
		return nil

	case <-handle.Done():
		if err := handle.Err(); err != nil {
			turn.Status = TurnErrored
			return err
		}
		return nil
	}
}

// finalizeTurn closes the turn, records it in the session and persists
// it. Storage failure degrades logging but never stalls the session.
func (o *Orchestrator) finalizeTurn(ctx context.Context, turn Turn) {
	turn.EndedAt = time.Now()
	o.session.Complete(turn)

	if o.turnLogger != nil {
		err := o.turnLogger.Append(turnlog.Record{
			TS:            turn.EndedAt,
			TurnID:        turn.ID,
			UserText:      turn.UserText,
			AssistantText: turn.AssistantText,
			Status:        string(turn.Status),
		})
		if err != nil {
			var storageErr *turnlog.StorageError
			if errors.As(err, &storageErr) && !o.loggingDegraded {
				o.loggingDegraded = true
				logger.ErrorContext(ctx, "turn logging degraded, continuing without persistence", "error", err)
			} else {
				logger.WarnContext(ctx, "failed to persist turn", "turn_id", turn.ID, "error", err)
			}
		}
	}

	if o.onTurn != nil {
		o.onTurn(turn)
	}
}

func (o *Orchestrator) setState(state State) {
	if o.state == state {
		return
	}
	o.state = state
	if o.onState != nil {
		o.onState(state)
	}
}
