package audio

import (
	"errors"
	"time"
)

// Frame is one fixed-duration block of PCM samples captured from the input
// device. Frames are immutable once produced.
type Frame struct {
	TS  time.Time
	PCM []byte
}

// Duration returns the frame's play time under the given encoding.
func (f Frame) Duration(encoding EncodingInfo) time.Duration {
	bps := encoding.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(bps)
}

// SealReason records why an utterance was closed.
type SealReason string

const (
	// SealReasonEndpoint means sustained silence followed the speech.
	SealReasonEndpoint SealReason = "endpoint"
	// SealReasonMaxDuration means the maximum-utterance guard fired.
	SealReasonMaxDuration SealReason = "max-duration"
	// SealReasonFlush means capture shut down with speech still open.
	SealReasonFlush SealReason = "flush"
)

var ErrUtteranceSealed = errors.New("audio: utterance already sealed")

// Utterance is one contiguous span of detected user speech. Frames are
// appended by the endpointer until the utterance is sealed; a sealed
// utterance accepts no further audio.
type Utterance struct {
	StartedAt time.Time
	EndedAt   time.Time

	encoding   EncodingInfo
	pcm        []byte
	sealed     bool
	sealReason SealReason
}

func NewUtterance(encoding EncodingInfo, startedAt time.Time) *Utterance {
	return &Utterance{StartedAt: startedAt, encoding: encoding}
}

func (u *Utterance) Append(frame Frame) error {
	if u.sealed {
		return ErrUtteranceSealed
	}
	u.pcm = append(u.pcm, frame.PCM...)
	return nil
}

// Seal closes the utterance. Sealing twice is an error, there is no
// legitimate path that reaches the same utterance from two places.
func (u *Utterance) Seal(reason SealReason, endedAt time.Time) error {
	if u.sealed {
		return ErrUtteranceSealed
	}
	u.sealed = true
	u.sealReason = reason
	u.EndedAt = endedAt
	return nil
}

func (u *Utterance) Sealed() bool           { return u.sealed }
func (u *Utterance) SealReason() SealReason { return u.sealReason }
func (u *Utterance) Encoding() EncodingInfo { return u.encoding }
func (u *Utterance) Empty() bool            { return len(u.pcm) == 0 }

// PCM returns the accumulated audio. Callers must not mutate it.
func (u *Utterance) PCM() []byte { return u.pcm }

// Duration is derived from the accumulated audio, not wall time, so a
// gap in capture does not inflate it.
func (u *Utterance) Duration() time.Duration {
	bps := u.encoding.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(len(u.pcm)) * time.Second / time.Duration(bps)
}

// WAV encodes the utterance as a 16-bit PCM mono WAV payload.
func (u *Utterance) WAV() []byte {
	return EncodeWAV(u.pcm, u.encoding.SampleRate)
}
