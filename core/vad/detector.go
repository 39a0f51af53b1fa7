// Package vad provides frame-level voice activity detection and utterance
// endpointing for the capture pipeline.
//
// The detector is a two-state machine (idle, listening) driven by a
// per-frame energy classification. It accumulates an open utterance while
// the user speaks, seals it after sustained silence or when the
// maximum-duration guard fires, and discards segments shorter than the
// configured minimum. While assistant playback is active it additionally
// watches for sustained speech above a higher threshold and reports it as
// an interruption request.
package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dringai/voiceagent/core/audio"
)

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
)

// Config holds the endpointing policy. All values are tunable; none of
// them are baked into the detector.
type Config struct {
	Encoding      audio.EncodingInfo
	FrameDuration time.Duration

	// SpeechThresholdDB is the dBFS energy above which a frame counts as
	// speech.
	SpeechThresholdDB float64
	// BargeInThresholdDB is the higher dBFS bar a frame must clear to count
	// towards an interruption while playback is active.
	BargeInThresholdDB float64

	// EndpointSilence is the silence run that seals an open utterance.
	EndpointSilence time.Duration
	// MinUtterance discards sealed segments shorter than this as noise.
	MinUtterance time.Duration
	// MaxUtterance forcibly seals an utterance that never goes silent.
	MaxUtterance time.Duration
	// BargeInHold is how long speech must stay above BargeInThresholdDB
	// before an interruption is reported.
	BargeInHold time.Duration
	// PreSpeechPadding is how much audio from just before speech onset is
	// prepended to the utterance.
	PreSpeechPadding time.Duration
}

func DefaultConfig() Config {
	return Config{
		Encoding:           audio.GetDefaultEncodingInfo(),
		FrameDuration:      20 * time.Millisecond,
		SpeechThresholdDB:  -30,
		BargeInThresholdDB: -20,
		EndpointSilence:    800 * time.Millisecond,
		MinUtterance:       300 * time.Millisecond,
		MaxUtterance:       15 * time.Second,
		BargeInHold:        250 * time.Millisecond,
		PreSpeechPadding:   200 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.Encoding.IsZero() {
		return fmt.Errorf("vad: encoding must be set")
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("vad: frame duration must be positive, got %s", c.FrameDuration)
	}
	if c.EndpointSilence < c.FrameDuration {
		return fmt.Errorf("vad: endpoint silence %s is below one frame period %s", c.EndpointSilence, c.FrameDuration)
	}
	if c.MinUtterance <= 0 {
		return fmt.Errorf("vad: minimum utterance duration must be positive, got %s", c.MinUtterance)
	}
	if c.MaxUtterance <= c.MinUtterance {
		return fmt.Errorf("vad: maximum utterance %s must exceed minimum %s", c.MaxUtterance, c.MinUtterance)
	}
	if c.BargeInThresholdDB < c.SpeechThresholdDB {
		return fmt.Errorf("vad: barge-in threshold %.1f dB is below speech threshold %.1f dB", c.BargeInThresholdDB, c.SpeechThresholdDB)
	}
	if c.BargeInHold < c.FrameDuration {
		return fmt.Errorf("vad: barge-in hold %s is below one frame period %s", c.BargeInHold, c.FrameDuration)
	}
	if c.PreSpeechPadding < 0 {
		return fmt.Errorf("vad: pre-speech padding must not be negative, got %s", c.PreSpeechPadding)
	}
	return nil
}

// Result is the outcome of classifying one frame. Utterance is non-nil
// exactly when an utterance was sealed and passed the minimum-duration
// filter. BargeIn is reported at most once per playback window.
type Result struct {
	Utterance *audio.Utterance
	BargeIn   bool
}

type Detector struct {
	cfg Config

	framesEndpoint int
	framesMin      int
	framesMax      int
	framesBarge    int
	framesPad      int

	state      State
	current    *audio.Utterance
	frameCount int
	silenceRun int

	// pendingSilence holds trailing silence frames that are only committed
	// to the utterance if speech resumes, so a sealed utterance ends at the
	// last speech frame instead of carrying the full endpoint gap.
	pendingSilence []audio.Frame
	preSpeech      []audio.Frame

	// playbackActive and playbackGen are the only fields shared across
	// goroutines. The barge counters below are owned by the goroutine
	// calling ProcessFrame; it resets them when it observes a new
	// playback generation.
	playbackActive atomic.Bool
	playbackGen    atomic.Uint64

	seenGen       uint64
	bargeRun      int
	bargeReported bool
}

func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Detector{
		cfg:            cfg,
		framesEndpoint: frames(cfg.EndpointSilence, cfg.FrameDuration),
		framesMin:      frames(cfg.MinUtterance, cfg.FrameDuration),
		framesMax:      frames(cfg.MaxUtterance, cfg.FrameDuration),
		framesBarge:    frames(cfg.BargeInHold, cfg.FrameDuration),
		framesPad:      frames(cfg.PreSpeechPadding, cfg.FrameDuration),
		state:          StateIdle,
	}, nil
}

func frames(d, frame time.Duration) int {
	return int((d + frame - 1) / frame)
}

func (d *Detector) State() State { return d.state }

// SetPlaybackActive tells the detector whether assistant audio is playing.
// The barge-in window resets on every transition. Safe to call while
// another goroutine runs ProcessFrame; the counters themselves are only
// touched from the processing side.
func (d *Detector) SetPlaybackActive(active bool) {
	d.playbackActive.Store(active)
	d.playbackGen.Add(1)
}

// ProcessFrame classifies one frame and advances the endpointer.
func (d *Detector) ProcessFrame(frame audio.Frame) Result {
	db := EnergyDB(frame.PCM)
	speech := db >= d.cfg.SpeechThresholdDB

	result := Result{BargeIn: d.trackBargeIn(db)}

	switch d.state {
	case StateIdle:
		if !speech {
			d.pushPreSpeech(frame)
			return result
		}
		d.openUtterance(frame)

	case StateListening:
		if speech {
			d.commitPendingSilence()
			_ = d.current.Append(frame)
			d.frameCount++
			d.silenceRun = 0
		} else {
			d.silenceRun++
			d.frameCount++
			if d.silenceRun >= d.framesEndpoint {
				result.Utterance = d.seal(audio.SealReasonEndpoint, frame.TS)
				return result
			}
			d.pendingSilence = append(d.pendingSilence, frame)
		}

		if d.frameCount >= d.framesMax {
			d.commitPendingSilence()
			result.Utterance = d.seal(audio.SealReasonMaxDuration, frame.TS)
		}
	}

	return result
}

// Flush seals and returns the open utterance, if any. Used on capture
// shutdown; the minimum-duration filter still applies.
func (d *Detector) Flush(now time.Time) *audio.Utterance {
	if d.state != StateListening {
		return nil
	}
	return d.seal(audio.SealReasonFlush, now)
}

func (d *Detector) trackBargeIn(db float64) bool {
	if gen := d.playbackGen.Load(); gen != d.seenGen {
		d.seenGen = gen
		d.bargeRun = 0
		d.bargeReported = false
	}

	if !d.playbackActive.Load() {
		return false
	}

	if db >= d.cfg.BargeInThresholdDB {
		d.bargeRun++
	} else {
		d.bargeRun = 0
	}

	if d.bargeRun >= d.framesBarge && !d.bargeReported {
		d.bargeReported = true
		return true
	}
	return false
}

func (d *Detector) openUtterance(frame audio.Frame) {
	startedAt := frame.TS
	if len(d.preSpeech) > 0 {
		startedAt = d.preSpeech[0].TS
	}

	d.current = audio.NewUtterance(d.cfg.Encoding, startedAt)
	for _, padding := range d.preSpeech {
		_ = d.current.Append(padding)
	}
	d.preSpeech = d.preSpeech[:0]

	_ = d.current.Append(frame)
	d.frameCount = 1
	d.silenceRun = 0
	d.state = StateListening
}

func (d *Detector) pushPreSpeech(frame audio.Frame) {
	if d.framesPad == 0 {
		return
	}
	d.preSpeech = append(d.preSpeech, frame)
	if len(d.preSpeech) > d.framesPad {
		d.preSpeech = d.preSpeech[len(d.preSpeech)-d.framesPad:]
	}
}

func (d *Detector) commitPendingSilence() {
	for _, frame := range d.pendingSilence {
		_ = d.current.Append(frame)
	}
	d.pendingSilence = d.pendingSilence[:0]
}

func (d *Detector) seal(reason audio.SealReason, endedAt time.Time) *audio.Utterance {
	utterance := d.current
	d.current = nil
	d.state = StateIdle
	d.frameCount = 0
	d.silenceRun = 0
	d.pendingSilence = d.pendingSilence[:0]

	_ = utterance.Seal(reason, endedAt)
	if utterance.Duration() < d.cfg.MinUtterance {
		// Too short to be speech, drop it.
		return nil
	}
	return utterance
}

// EnergyDB computes the RMS energy of 16-bit little-endian PCM in dBFS.
func EnergyDB(pcm []byte) float64 {
	if len(pcm) < 2 {
		return -100
	}

	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / math.MaxInt16
		sum += sample * sample
	}

	rms := math.Sqrt(sum / float64(n))
	if rms < 1e-10 {
		return -100
	}
	return 20 * math.Log10(rms)
}
