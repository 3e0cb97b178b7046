package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Recorder captures audio from the default microphone into a float64 buffer.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	buf       []float64
	recording bool
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate, channels int) (*Recorder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("audio: sample rate and channels must be > 0")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	r := &Recorder{
		ctx:        ctx,
		sampleRate: uint32(sampleRate),
		channels:   uint32(channels),
	}

	return r, nil
}

// Start begins capturing audio from the default microphone. Samples are
// accumulated in an internal buffer, downmixed to mono.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.buf = r.buf[:0] // reset buffer but keep capacity
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Stop ends the audio capture and returns the recorded mono samples.
func (r *Recorder) Stop() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false

	result := make([]float64, len(r.buf))
	copy(result, r.buf)

	return result
}

// Record captures from the microphone for a fixed duration. It honors
// context cancellation, returning whatever was captured so far.
func (r *Recorder) Record(ctx context.Context, duration time.Duration) ([]float64, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("audio: recording duration must be > 0")
	}

	if err := r.Start(); err != nil {
		return nil, err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}

	samples := r.Stop()
	if err := ctx.Err(); err != nil {
		return samples, err
	}
	return samples, nil
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
	}

	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured frames as raw bytes (float32 format,
// channel-interleaved).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	frames := framesToMono(pSample, frameCount, r.channels)

	r.mu.Lock()
	r.buf = append(r.buf, frames...)
	r.mu.Unlock()
}

// framesToMono converts raw little-endian float32 frames to mono float64
// samples, averaging across channels.
func framesToMono(data []byte, frameCount, channels uint32) []float64 {
	frames := make([]float64, 0, frameCount)
	for f := uint32(0); f < frameCount; f++ {
		var sum float64
		for c := uint32(0); c < channels; c++ {
			offset := (f*channels + c) * 4
			if offset+4 > uint32(len(data)) {
				return frames
			}
			bits := binary.LittleEndian.Uint32(data[offset : offset+4])
			sum += float64(math.Float32frombits(bits))
		}
		frames = append(frames, sum/float64(channels))
	}
	return frames
}
