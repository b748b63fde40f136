package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/mzoric/voxjournal/core/audio"
)

// Client is the blocking-stream alternative to the miniaudio backend, for
// platforms where PortAudio is the better-supported host API. One duplex
// stream serves both capture and playback, mono PCM16 at the engine's
// sample rate.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	mu        sync.Mutex
	capturing bool
	stop      chan struct{}
	done      chan struct{}

	playQueue  chan scheduledFrame
	playDone   chan struct{}
	generation int
	genMu      sync.Mutex
}

type scheduledFrame struct {
	frame      []float32
	at         time.Time
	generation int
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	client := &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
		playQueue:  make(chan scheduledFrame, 256),
		playDone:   make(chan struct{}),
	}

	if err := stream.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go client.playLoop()
	return client, nil
}

// StartCapture reads the stream on a dedicated goroutine and hands each
// buffer to onFrame as normalized samples, until StopCapture.
func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return nil
	}
	c.capturing = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func(stop, done chan struct{}) {
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
				continue
			}

			frame := make([]float32, len(c.in))
			for i, sample := range c.in {
				if sample < 0 {
					frame[i] = float32(sample) / 32768
				} else {
					frame[i] = float32(sample) / 32767
				}
			}
			onFrame(frame)
		}
	}(c.stop, c.done)

	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}
	c.capturing = false
	close(c.stop)
	<-c.done
	return nil
}

// PlayAt queues the frame to start at the given wall-clock time.
func (c *Client) PlayAt(frame []float32, at time.Time) error {
	c.genMu.Lock()
	generation := c.generation
	c.genMu.Unlock()

	select {
	case c.playQueue <- scheduledFrame{frame: frame, at: at, generation: generation}:
		return nil
	default:
		return fmt.Errorf("playback queue full")
	}
}

// Clear invalidates everything queued for playback.
func (c *Client) Clear() {
	c.genMu.Lock()
	c.generation++
	c.genMu.Unlock()
}

func (c *Client) playLoop() {
	for {
		select {
		case <-c.playDone:
			return
		case scheduled := <-c.playQueue:
			c.genMu.Lock()
			current := c.generation
			c.genMu.Unlock()
			if scheduled.generation != current {
				continue
			}

			if wait := time.Until(scheduled.at); wait > 0 {
				time.Sleep(wait)
			}
			c.writeFrame(scheduled.frame)
		}
	}
}

// writeFrame renders one frame through the blocking stream, zero-padding the
// final partial buffer.
func (c *Client) writeFrame(frame []float32) {
	for offset := 0; offset < len(frame); offset += c.bufferSize {
		end := offset + c.bufferSize
		if end > len(frame) {
			end = len(frame)
		}

		for i := range c.out {
			c.out[i] = 0
		}
		for i, sample := range frame[offset:end] {
			if sample < 0 {
				c.out[i] = int16(sample * 32768)
			} else {
				c.out[i] = int16(sample * 32767)
			}
		}

		if err := c.stream.Write(); err != nil {
			return
		}
	}
}

func (c *Client) Close() {
	_ = c.StopCapture()

	select {
	case <-c.playDone:
	default:
		close(c.playDone)
	}

	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
