// Package portaudio is the alternate audio device backend, selected with
// AUDIO_BACKEND=portaudio. It drives one duplex stream: the capture loop
// reads from it, playback writes to it synchronously.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/dringai/voiceagent/core/audio"
)

const defaultBufferFrames = 320

type Client struct {
	bufferFrames int
	stream       *portaudio.Stream

	in  []int16
	out []int16

	captureStop chan struct{}
	captureDone chan struct{}

	playing  bool
	leftover []byte
	writeMu  sync.Mutex

	mu sync.Mutex
}

func NewClient() (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, defaultBufferFrames)
	out := make([]int16, defaultBufferFrames)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, defaultBufferFrames, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	return &Client{
		bufferFrames: defaultBufferFrames,
		stream:       stream,
		in:           in,
		out:          out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.captureStop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.captureStop = stop
	c.captureDone = done

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}

			if err := c.stream.Read(); err != nil {
				// Overflow just skips a buffer; keep reading.
				continue
			}

			buf := bytes.Buffer{}
			_ = binary.Write(&buf, binary.LittleEndian, c.in)
			onAudio(buf.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	stop, done := c.captureStop, c.captureDone
	c.captureStop, c.captureDone = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	return c.ClearBuffer()
}

// SendAudio writes whole buffers to the stream and keeps the remainder
// for the next call. Writes are synchronous, so the call returns once the
// audio is handed to the device.
func (c *Client) SendAudio(pcm []byte) error {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	if !playing {
		return fmt.Errorf("playback not started")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data := append(c.leftover, pcm...)
	c.leftover = c.writeBuffers(data)
	return nil
}

func (c *Client) ClearBuffer() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.leftover = nil
	return nil
}

// Mark flushes the remainder padded with silence, then fires the
// callback. With synchronous writes everything queued before the mark has
// already reached the device.
func (c *Client) Mark(onDrained func()) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if len(c.leftover) > 0 {
		bufferBytes := c.bufferFrames * 2
		padded := make([]byte, bufferBytes)
		silence := c.EncodingInfo().SilenceValue()
		for i := range padded {
			padded[i] = silence
		}
		copy(padded, c.leftover)
		c.leftover = c.writeBuffers(padded)
	}

	go onDrained()
	return nil
}

// writeBuffers pushes as many whole buffers as data holds and returns the
// remainder. Caller holds writeMu.
func (c *Client) writeBuffers(data []byte) []byte {
	bufferBytes := c.bufferFrames * 2
	for len(data) >= bufferBytes {
		_ = binary.Read(bytes.NewReader(data[:bufferBytes]), binary.LittleEndian, c.out)
		// Underflow errors are recoverable, the buffer was still consumed.
		_ = c.stream.Write()
		data = data[bufferBytes:]
	}

	remainder := make([]byte, len(data))
	copy(remainder, data)
	return remainder
}

func (c *Client) Close() {
	_ = c.StopCapture()
	_ = c.stream.Stop()
	c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
