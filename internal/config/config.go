// Package config loads the agent's runtime configuration from the
// environment, with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

type Config struct {
	AudioBackend string
	LogDir       string

	FrameDuration      time.Duration
	SpeechThresholdDB  float64
	BargeInThresholdDB float64
	EndpointSilence    time.Duration
	MinUtterance       time.Duration
	MaxUtterance       time.Duration
	BargeInHold        time.Duration
	PreSpeechPadding   time.Duration

	DeepgramAPIKey   string
	DeepgramModel    string
	DeepgramLanguage string

	OpenAIAPIKey      string
	OpenAIModel       string
	AgentInstructions string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	FallbackUtterance string
}

// Load reads .env if present, then the environment. Missing optional
// values fall back to defaults; Validate reports what is unusable.
func Load() (Config, error) {
	// Missing .env is not an error, the environment may be set directly.
	_ = godotenv.Load()

	cfg := Config{
		AudioBackend: getEnv("AUDIO_BACKEND", BackendMiniaudio),
		LogDir:       getEnv("LOG_DIR", "data/logs"),

		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:    getEnv("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage: getEnv("DEEPGRAM_LANGUAGE", "tr"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AgentInstructions: os.Getenv("AGENT_INSTRUCTIONS"),

		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		ElevenLabsModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),

		FallbackUtterance: os.Getenv("FALLBACK_UTTERANCE"),
	}

	var err error
	if cfg.FrameDuration, err = durationMsEnv("FRAME_DURATION_MS", 20); err != nil {
		return cfg, err
	}
	if cfg.SpeechThresholdDB, err = floatEnv("SPEECH_THRESHOLD_DB", -30); err != nil {
		return cfg, err
	}
	if cfg.BargeInThresholdDB, err = floatEnv("BARGE_IN_THRESHOLD_DB", -20); err != nil {
		return cfg, err
	}
	if cfg.EndpointSilence, err = durationMsEnv("ENDPOINT_SILENCE_MS", 800); err != nil {
		return cfg, err
	}
	if cfg.MinUtterance, err = durationMsEnv("MIN_UTTERANCE_MS", 300); err != nil {
		return cfg, err
	}
	if cfg.MaxUtterance, err = durationMsEnv("MAX_UTTERANCE_MS", 15000); err != nil {
		return cfg, err
	}
	if cfg.BargeInHold, err = durationMsEnv("BARGE_IN_HOLD_MS", 250); err != nil {
		return cfg, err
	}
	if cfg.PreSpeechPadding, err = durationMsEnv("PRE_SPEECH_PADDING_MS", 200); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.AudioBackend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		return fmt.Errorf("AUDIO_BACKEND must be %q or %q, got %q",
			BackendMiniaudio, BackendPortaudio, c.AudioBackend)
	}

	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required")
	}
	if c.ElevenLabsVoiceID == "" {
		return fmt.Errorf("ELEVENLABS_VOICE_ID is required")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationMsEnv(key string, fallback int) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return time.Duration(fallback) * time.Millisecond, nil
	}

	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer millisecond count, got %q", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return value, nil
}
