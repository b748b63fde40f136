package miniaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/mzoric/voxjournal/core/audio"
)

// playbackClient renders a timeline of scheduled frames. Frames land in a
// single PCM queue that the device callback drains; a frame scheduled past
// the end of the queued audio is padded in with silence.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	info audio.EncodingInfo

	queued []byte
	// queueEnd is the wall-clock instant the queued audio runs out.
	queueEnd time.Time

	mu      sync.Mutex
	queueMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.info = audio.GetDefaultEncodingInfo()

	sampleRate := uint32(c.info.SampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
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
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.ClearBuffer()
	return nil
}

// Schedule queues the frame so it starts at the given wall-clock time. A
// start beyond the end of the queued audio becomes silence in the queue; a
// start at or before it plays back-to-back with what is already queued.
func (c *playbackClient) Schedule(frame []float32, at time.Time) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	now := time.Now()
	if c.queueEnd.Before(now) {
		c.queueEnd = now
	}

	if gap := at.Sub(c.queueEnd); gap > 0 {
		silenceSamples := int(gap.Seconds() * float64(c.info.SampleRate))
		c.queued = append(c.queued, make([]byte, silenceSamples*2)...)
		c.queueEnd = c.queueEnd.Add(c.info.SamplesDuration(silenceSamples))
	}

	c.queued = append(c.queued, audio.Float32ToPCM16(frame)...)
	c.queueEnd = c.queueEnd.Add(c.info.SamplesDuration(len(frame)))
	return nil
}

func (c *playbackClient) ClearBuffer() {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	c.queued = nil
	c.queueEnd = time.Time{}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.queueMu.Lock()
		defer c.queueMu.Unlock()

		if len(c.queued) == 0 {
			return
		}

		if len(c.queued) < need {
			copy(pOutput, c.queued)
			c.queued = nil
			return
		}

		copy(pOutput, c.queued[:need])
		c.queued = c.queued[need:]
	}
}
