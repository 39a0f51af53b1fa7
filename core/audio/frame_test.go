package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestUtteranceAppendAndSeal(t *testing.T) {
	start := time.Now()
	u := NewUtterance(GetDefaultEncodingInfo(), start)

	frame := Frame{TS: start, PCM: make([]byte, 640)}
	for i := 0; i < 10; i++ {
		if err := u.Append(frame); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	if got := u.Duration(); got != 200*time.Millisecond {
		t.Fatalf("duration = %s, want 200ms", got)
	}

	end := start.Add(time.Second)
	if err := u.Seal(SealReasonEndpoint, end); err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if !u.Sealed() || u.SealReason() != SealReasonEndpoint {
		t.Fatalf("sealed = %v, reason = %q", u.Sealed(), u.SealReason())
	}
	if !u.EndedAt.Equal(end) {
		t.Fatalf("ended at = %s, want %s", u.EndedAt, end)
	}
}

func TestSealedUtteranceRejectsAudio(t *testing.T) {
	u := NewUtterance(GetDefaultEncodingInfo(), time.Now())
	_ = u.Append(Frame{PCM: make([]byte, 640)})
	_ = u.Seal(SealReasonEndpoint, time.Now())

	if err := u.Append(Frame{PCM: make([]byte, 640)}); !errors.Is(err, ErrUtteranceSealed) {
		t.Fatalf("append after seal = %v, want ErrUtteranceSealed", err)
	}
	if err := u.Seal(SealReasonFlush, time.Now()); !errors.Is(err, ErrUtteranceSealed) {
		t.Fatalf("second seal = %v, want ErrUtteranceSealed", err)
	}
}

func TestUtteranceEmpty(t *testing.T) {
	u := NewUtterance(GetDefaultEncodingInfo(), time.Now())
	if !u.Empty() {
		t.Fatal("fresh utterance should be empty")
	}

	_ = u.Append(Frame{PCM: make([]byte, 640)})
	if u.Empty() {
		t.Fatal("utterance with audio should not be empty")
	}
}

func TestSilenceValuePerFormat(t *testing.T) {
	cases := []struct {
		format encodingFormat
		want   byte
	}{
		{EncodingLinear16, 0},
		{EncodingALaw, 0x55},
		{EncodingMulaw, 0xFF},
	}
	for _, c := range cases {
		e := EncodingInfo{SampleRate: DefaultSampleRate, Format: c.format}
		if got := e.SilenceValue(); got != c.want {
			t.Fatalf("silence value for %s = %#x, want %#x", c.format.Name(), got, c.want)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	frame := Frame{PCM: make([]byte, 640)}
	if got := frame.Duration(GetDefaultEncodingInfo()); got != 20*time.Millisecond {
		t.Fatalf("frame duration = %s, want 20ms", got)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := EncodeWAV(pcm, DefaultSampleRate)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != DefaultSampleRate {
		t.Fatalf("sample rate = %d, want %d", rate, DefaultSampleRate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", size, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatal("payload does not match input")
	}
}

func TestUtteranceWAV(t *testing.T) {
	u := NewUtterance(GetDefaultEncodingInfo(), time.Now())
	_ = u.Append(Frame{PCM: []byte{1, 2, 3, 4}})

	wav := u.WAV()
	if len(wav) != 48 {
		t.Fatalf("wav length = %d, want 48", len(wav))
	}
	if !bytes.Equal(wav[44:], []byte{1, 2, 3, 4}) {
		t.Fatal("payload does not match utterance audio")
	}
}
