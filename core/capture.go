package orchestration

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dringai/voiceagent/core/audio"
	"github.com/dringai/voiceagent/core/vad"
)

const (
	captureChunkBuffer = 64
	utteranceBuffer    = 4
)

// capturePipeline owns the input device and the detector. It runs for the
// whole session, turning raw device chunks into frames, frames into sealed
// utterances and barge-in signals. It never blocks the device callback:
// when the orchestrator falls behind, chunks are dropped and the gap is
// surfaced instead of silently stretching the audio.
type capturePipeline struct {
	input    AudioInput
	detector *vad.Detector

	frameBytes int

	chunks     chan []byte
	utterances chan *audio.Utterance
	bargeIn    chan struct{}
	fatal      chan error

	leftover []byte
	gap      atomic.Bool
	dropped  atomic.Int64
}

func newCapturePipeline(input AudioInput, detector *vad.Detector, frameDuration time.Duration) *capturePipeline {
	encoding := input.EncodingInfo()
	frameBytes := encoding.BytesPerSecond() * int(frameDuration.Milliseconds()) / 1000

	return &capturePipeline{
		input:      input,
		detector:   detector,
		frameBytes: frameBytes,
		chunks:     make(chan []byte, captureChunkBuffer),
		utterances: make(chan *audio.Utterance, utteranceBuffer),
		bargeIn:    make(chan struct{}, 1),
		fatal:      make(chan error, 1),
	}
}

// run starts capture and processes chunks until ctx ends. On return the
// device is stopped, any open utterance is flushed, and the utterance
// channel is closed.
func (p *capturePipeline) run(ctx context.Context) {
	defer close(p.utterances)

	err := p.input.StartCapture(ctx, func(pcm []byte) {
		chunk := make([]byte, len(pcm))
		copy(chunk, pcm)

		select {
		case p.chunks <- chunk:
		default:
			// Consumer is behind. Drop the chunk rather than block the
			// device thread, and mark the gap.
			p.dropped.Add(int64(len(chunk)))
			p.gap.Store(true)
		}
	})
	if err != nil {
		p.reportFatal(&DeviceError{Device: "capture", Err: err})
		return
	}

	for {
		select {
		case <-ctx.Done():
			if err := p.input.StopCapture(); err != nil {
				logger.WarnContext(ctx, "failed to stop capture device", "error", err)
			}
			if utterance := p.detector.Flush(time.Now()); utterance != nil {
				p.dispatch(ctx, utterance)
			}
			return

		case chunk := <-p.chunks:
			p.consume(ctx, chunk)
		}
	}
}

func (p *capturePipeline) consume(ctx context.Context, chunk []byte) {
	if p.gap.Swap(false) {
		// Frame alignment is lost across a gap; restart assembly.
		logger.WarnContext(ctx, "capture gap, dropped audio", "bytes", p.dropped.Swap(0))
		p.leftover = p.leftover[:0]
	}

	p.leftover = append(p.leftover, chunk...)
	for len(p.leftover) >= p.frameBytes {
		frame := audio.Frame{TS: time.Now(), PCM: p.leftover[:p.frameBytes:p.frameBytes]}
		p.leftover = p.leftover[p.frameBytes:]

		result := p.detector.ProcessFrame(frame)
		if result.BargeIn {
			select {
			case p.bargeIn <- struct{}{}:
			default:
			}
		}
		if result.Utterance != nil {
			p.dispatch(ctx, result.Utterance)
		}
	}
}

func (p *capturePipeline) dispatch(ctx context.Context, utterance *audio.Utterance) {
	select {
	case p.utterances <- utterance:
	default:
		// Backlog full. Drop the oldest so recent speech wins.
		select {
		case stale := <-p.utterances:
			logger.WarnContext(ctx, "utterance backlog full, dropping oldest",
				"dropped_duration", stale.Duration())
		default:
		}
		select {
		case p.utterances <- utterance:
		default:
		}
	}
}

func (p *capturePipeline) reportFatal(err error) {
	select {
	case p.fatal <- err:
	default:
	}
}

// drainBargeIn clears any stale barge-in signal before playback starts.
func (p *capturePipeline) drainBargeIn() {
	select {
	case <-p.bargeIn:
	default:
	}
}
