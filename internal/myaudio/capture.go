package myaudio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// Capturer opens the microphone.
type Capturer interface {
	// StartCapture acquires the input device and starts recording.
	// It fails with ErrPermissionDenied, ErrDeviceNotFound or ErrDeviceBusy.
	StartCapture(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle is an active recording that owns the input device.
type CaptureHandle interface {
	// Stop releases the device and returns the recorded clip. It always
	// releases, even when encoding fails, and repeated calls return the
	// first result without touching the device again.
	Stop() (AudioBlob, error)
}

// LevelReporter is implemented by handles that expose a live input meter.
type LevelReporter interface {
	Level() AudioLevelData
}

// clipRecorder buffers PCM from a device callback into a bounded clip.
// Audio beyond the bound is dropped so a forgotten recording cannot grow without limit.
type clipRecorder struct {
	mu         sync.Mutex
	rb         *ringbuffer.RingBuffer
	sampleRate int
	stopped    bool
	truncated  bool
	started    time.Time

	level    atomic.Int32
	clipping atomic.Bool

	release  func() error
	stopOnce sync.Once
	blob     AudioBlob
	err      error

	log logger.Logger
}

// newClipRecorder sizes the buffer for maxDuration of 16-bit mono audio.
// release is called exactly once by Stop to free the device.
func newClipRecorder(sampleRate int, maxDuration time.Duration, release func() error) *clipRecorder {
	capacity := int(maxDuration.Seconds() * float64(sampleRate) * BitDepth / 8 * NumChannels)
	if capacity <= 0 {
		capacity = sampleRate * BitDepth / 8
	}
	return &clipRecorder{
		rb:         ringbuffer.New(capacity),
		sampleRate: sampleRate,
		started:    time.Now(),
		release:    release,
		log:        GetLogger(),
	}
}

// write is the device data callback.
func (c *clipRecorder) write(samples []byte) {
	if len(samples) == 0 {
		return
	}

	meter := AudioLevel(samples)
	c.level.Store(int32(meter.Level))
	c.clipping.Store(meter.Clipping)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.truncated {
		return
	}
	if _, err := c.rb.Write(samples); err != nil {
		c.truncated = true
		c.log.Warn("capture buffer full, dropping further audio",
			logger.Int("capacity", c.rb.Capacity()),
			logger.Duration("recorded", time.Since(c.started)))
	}
}

// Level returns the most recent input meter reading.
func (c *clipRecorder) Level() AudioLevelData {
	return AudioLevelData{Level: int(c.level.Load()), Clipping: c.clipping.Load()}
}

// Stop releases the device and encodes the buffered clip.
func (c *clipRecorder) Stop() (AudioBlob, error) {
	c.stopOnce.Do(func() {
		// callbacks arriving during release are dropped
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		var releaseErr error
		if c.release != nil {
			releaseErr = c.release()
		}

		c.mu.Lock()
		pcm := c.drainLocked()
		truncated := c.truncated
		c.mu.Unlock()

		c.log.Debug("capture stopped",
			logger.Int("bytes", len(pcm)),
			logger.Bool("truncated", truncated),
			logger.Duration("elapsed", time.Since(c.started)))

		switch {
		case releaseErr != nil && len(pcm) == 0:
			c.err = classifyDeviceError("stop_capture", releaseErr)
		case len(pcm) == 0:
			c.err = errors.New(ErrNoAudioCaptured).
				Component("myaudio").
				Category(errors.CategoryAudio).
				Context("operation", "stop_capture").
				Build()
		default:
			if releaseErr != nil {
				c.log.Warn("device release reported an error", logger.Error(releaseErr))
			}
			c.blob, c.err = EncodeClip(pcm, c.sampleRate)
		}
	})
	return c.blob, c.err
}

func (c *clipRecorder) drainLocked() []byte {
	n := c.rb.Length()
	if n == 0 {
		return nil
	}
	pcm := make([]byte, n)
	read, err := c.rb.Read(pcm)
	if err != nil {
		c.log.Warn("failed to drain capture buffer", logger.Error(err))
	}
	return pcm[:read]
}
