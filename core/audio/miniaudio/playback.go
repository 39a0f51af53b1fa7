package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/dringai/voiceagent/core/audio"
)

type playbackMark struct {
	position int
	callback func()
}

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	// buffer and marks share one lock; mark positions are byte offsets
	// into the unplayed buffer.
	buffer []byte
	marks  []playbackMark
	bufMu  sync.Mutex

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	// Short periods keep cancellation latency under one frame period.
	c.config.PeriodSizeInFrames = 320
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	return c.ClearBuffer()
}

func (c *playbackClient) SendAudio(pcm []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("device not started")
	}

	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffer = append(c.buffer, pcm...)
	return nil
}

func (c *playbackClient) ClearBuffer() error {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffer = nil
	c.marks = nil
	return nil
}

// Mark fires callback once everything queued before it has played out.
// A mark placed on an empty buffer fires on the next device tick.
func (c *playbackClient) Mark(callback func()) error {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.marks = append(c.marks, playbackMark{position: len(c.buffer), callback: callback})
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.bufMu.Lock()
		played := copy(pOutput, c.buffer)
		c.buffer = c.buffer[played:]
		fired := c.advanceMarks(played)
		c.bufMu.Unlock()

		if fired != nil {
			go func() {
				for _, mark := range fired {
					mark.callback()
				}
			}()
		}

		// Underrun past the buffered audio plays silence.
		silence := audio.GetDefaultEncodingInfo().SilenceValue()
		for i := played; i < need && i < len(pOutput); i++ {
			pOutput[i] = silence
		}
	}
}

// advanceMarks moves mark positions past the played audio and returns the
// marks that were crossed. Caller holds bufMu.
func (c *playbackClient) advanceMarks(played int) []playbackMark {
	var fired []playbackMark
	remaining := c.marks[:0]
	for _, mark := range c.marks {
		mark.position -= played
		if mark.position <= 0 {
			fired = append(fired, mark)
			continue
		}
		remaining = append(remaining, mark)
	}
	c.marks = remaining
	return fired
}
