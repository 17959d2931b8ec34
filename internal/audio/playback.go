// internal/audio/playback.go
package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotRunning = errors.New("audio playback not running")
	ErrClosed     = errors.New("audio playback closed")
	// ErrBackendUnavailable wraps a failed backend/context init; a session
	// treats it as fatal and aborts before any audio work begins.
	ErrBackendUnavailable = errors.New("audio backend unavailable")
)

// Config holds audio playback configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 48000
	Channels    uint32 // 2 for stereo drills
	BufferSize  uint32 // frames per device callback
}

// DefaultConfig returns sensible defaults for drill playback
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  48000,
		Channels:    2,
		BufferSize:  1024,
	}
}

// maxPendingFrames bounds the buffered audio between Write and the device
// callback (~1/3 s at 48 kHz). Write blocks above this watermark, which is
// what gives the delivery loop its backpressure.
const maxPendingFrames = 16384

// Playback renders interleaved float32 stereo frames to an output device.
// Write blocks when the device is behind, the device callback drains the
// pending buffer and zero-fills on underrun.
type Playback struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	mu      sync.Mutex
	cond    *sync.Cond
	pending []float32
	running bool
	closed  bool
}

// New creates a new playback instance
func New(cfg Config) *Playback {
	p := &Playback{config: cfg}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start initializes the audio backend and starts the output device.
func (p *Playback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.running {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", ErrBackendUnavailable, err)
	}
	p.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = p.config.SampleRate
	deviceConfig.PeriodSizeInFrames = p.config.BufferSize
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = p.config.Channels

	// Select specific device if requested
	if p.config.DeviceIndex >= 0 {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			p.teardownContextLocked()
			return fmt.Errorf("enumerate devices: %w", err)
		}
		if p.config.DeviceIndex >= len(infos) {
			p.teardownContextLocked()
			return fmt.Errorf("device index %d out of range (have %d devices)",
				p.config.DeviceIndex, len(infos))
		}
		deviceConfig.Playback.DeviceID = infos[p.config.DeviceIndex].ID.Pointer()
	}

	// Callback pulls pending samples into the device buffer
	onSendFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		p.fill(outputSamples, frameCount)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSendFrames,
	})
	if err != nil {
		p.teardownContextLocked()
		return fmt.Errorf("%w: init device: %v", ErrBackendUnavailable, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		p.teardownContextLocked()
		return fmt.Errorf("start device: %w", err)
	}

	p.device = device
	p.running = true
	return nil
}

// fill copies pending samples into the device output buffer, zero-filling
// any shortfall, and wakes writers blocked on the watermark.
func (p *Playback) fill(out []byte, frameCount uint32) {
	want := int(frameCount * p.config.Channels)

	p.mu.Lock()
	n := len(p.pending)
	if n > want {
		n = want
	}
	float32ToBytes(p.pending[:n], out)
	p.pending = p.pending[n:]
	p.cond.Broadcast()
	p.mu.Unlock()

	for i := n * 4; i < want*4; i++ {
		out[i] = 0
	}
}

// Write queues interleaved stereo samples for playback. It blocks while
// the pending buffer is above the watermark and returns ErrClosed or
// ErrNotRunning if the playback was torn down while waiting.
func (p *Playback) Write(samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) >= maxPendingFrames*int(p.config.Channels) {
		if p.closed {
			return ErrClosed
		}
		if !p.running {
			return ErrNotRunning
		}
		p.cond.Wait()
	}
	if p.closed {
		return ErrClosed
	}
	if !p.running {
		return ErrNotRunning
	}

	p.pending = append(p.pending, samples...)
	return nil
}

// Drain blocks until the device has consumed all pending samples.
func (p *Playback) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) > 0 && p.running && !p.closed {
		p.cond.Wait()
	}
}

// Stop stops the output device but keeps the backend context.
func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}
	p.stopDeviceLocked()
	return nil
}

// Close releases all audio resources and unblocks any pending Write.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.running {
		p.stopDeviceLocked()
	}
	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			p.ctx.Free()
			p.ctx = nil
			return fmt.Errorf("uninit context: %w", err)
		}
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

// IsRunning returns true if playback is active
func (p *Playback) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Playback) stopDeviceLocked() {
	if p.device != nil {
		_ = p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}
	p.running = false
	p.pending = nil
	p.cond.Broadcast()
}

func (p *Playback) teardownContextLocked() {
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}

// float32ToBytes writes samples into out as little-endian float32
func float32ToBytes(samples []float32, out []byte) {
	for i, s := range samples {
		bits := math.Float32bits(s)
		offset := i * 4
		out[offset] = byte(bits)
		out[offset+1] = byte(bits >> 8)
		out[offset+2] = byte(bits >> 16)
		out[offset+3] = byte(bits >> 24)
	}
}
