// Command voiceagent runs a voice conversation session against the
// default audio devices until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestration "github.com/dringai/voiceagent/core"
	"github.com/dringai/voiceagent/core/audio/miniaudio"
	"github.com/dringai/voiceagent/core/audio/portaudio"
	"github.com/dringai/voiceagent/core/llms/openai"
	"github.com/dringai/voiceagent/core/speechtotext/deepgram"
	"github.com/dringai/voiceagent/core/texttospeech/elevenlabs"
	"github.com/dringai/voiceagent/core/turnlog"
	"github.com/dringai/voiceagent/core/vad"
	"github.com/dringai/voiceagent/internal/config"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	audioClient, closeAudio, err := newAudioClient(cfg.AudioBackend)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audio device error:", err)
		return exitFatal
	}
	defer closeAudio()

	transcriber, err := deepgram.NewTranscriptionClient(cfg.DeepgramAPIKey,
		deepgram.WithModel(cfg.DeepgramModel),
		deepgram.WithLanguage(cfg.DeepgramLanguage),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	dialogueOpts := []openai.ClientOption{openai.WithModel(cfg.OpenAIModel)}
	if cfg.AgentInstructions != "" {
		dialogueOpts = append(dialogueOpts, openai.WithInstructions(cfg.AgentInstructions))
	}
	dialogue, err := openai.NewClient(cfg.OpenAIAPIKey, dialogueOpts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	synthesizer, err := elevenlabs.NewSynthesisClient(cfg.ElevenLabsAPIKey,
		elevenlabs.WithVoice(cfg.ElevenLabsVoiceID),
		elevenlabs.WithModelID(cfg.ElevenLabsModelID),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	options := []orchestration.OrchestratorOption{
		orchestration.WithAudioInput(audioClient),
		orchestration.WithAudioOutput(audioClient),
		orchestration.WithTranscriptionClient(transcriber),
		orchestration.WithDialogueEngine(dialogue),
		orchestration.WithSynthesisClient(synthesizer),
		orchestration.WithDetectorConfig(vad.Config{
			FrameDuration:      cfg.FrameDuration,
			SpeechThresholdDB:  cfg.SpeechThresholdDB,
			BargeInThresholdDB: cfg.BargeInThresholdDB,
			EndpointSilence:    cfg.EndpointSilence,
			MinUtterance:       cfg.MinUtterance,
			MaxUtterance:       cfg.MaxUtterance,
			BargeInHold:        cfg.BargeInHold,
			PreSpeechPadding:   cfg.PreSpeechPadding,
		}),
	}

	if cfg.FallbackUtterance != "" {
		options = append(options, orchestration.WithFallbackUtterance(cfg.FallbackUtterance))
	}

	turnLog, err := turnlog.Open(cfg.LogDir, time.Now())
	if err != nil {
		// Persistence degrades, the conversation still runs.
		fmt.Fprintln(os.Stderr, "turn logging disabled:", err)
	} else {
		defer turnLog.Close()
		options = append(options, orchestration.WithTurnLogger(turnLog))
	}

	orchestrator, err := orchestration.NewOrchestrator(options...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	}

	if err := orchestrator.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "session ended:", err)
		return exitFatal
	}

	fmt.Println("session ended")
	return exitOK
}

type audioClient interface {
	orchestration.AudioInput
	orchestration.AudioOutput
}

func newAudioClient(backend string) (audioClient, func(), error) {
	switch backend {
	case config.BackendPortaudio:
		client, err := portaudio.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	default:
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
}
