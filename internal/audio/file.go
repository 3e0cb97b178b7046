// Package audio provides microphone capture, audio file decoding, WAV
// writing, and playback for the rest of the pipeline. All sample data is
// mono float64 in [-1, 1].
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	beepflac "github.com/faiface/beep/flac"
	beepmp3 "github.com/faiface/beep/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// resampleQuality is the beep resampler quality index. 4 is a good
// speed/fidelity tradeoff for offline work.
const resampleQuality = 4

// LoadFile decodes an audio file into mono samples at targetRate.
// Supported formats: .wav, .mp3, .flac. Files at a different rate are
// resampled.
func LoadFile(path string, targetRate int) ([]float64, int, error) {
	if targetRate <= 0 {
		return nil, 0, fmt.Errorf("audio: target rate must be > 0")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path, targetRate)
	case ".mp3", ".flac":
		return loadCompressed(path, targetRate)
	default:
		return nil, 0, fmt.Errorf("audio: unsupported file extension %q (want .wav, .mp3, or .flac)", filepath.Ext(path))
	}
}

// loadWAV decodes a PCM WAV file via go-audio and resamples if needed.
func loadWAV(path string, targetRate int) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding WAV %s: %w", path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("audio: %s contains no samples", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	// Downmix to mono by channel average.
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	srcRate := buf.Format.SampleRate
	if srcRate == targetRate {
		return samples, targetRate, nil
	}

	resampled := beep.Resample(resampleQuality, beep.SampleRate(srcRate), beep.SampleRate(targetRate), &bufferStreamer{samples: samples})
	return drain(resampled), targetRate, nil
}

// loadCompressed decodes MP3 or FLAC via beep and resamples if needed.
func loadCompressed(path string, targetRate int) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		stream, format, err = beepmp3.Decode(f)
	} else {
		stream, format, err = beepflac.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	if int(format.SampleRate) != targetRate {
		src = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(targetRate), stream)
	}

	samples := drain(src)
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("audio: %s contains no samples", path)
	}
	return samples, targetRate, nil
}

// SaveWAV writes mono samples as 16-bit PCM.
func SaveWAV(path string, samples []float64, rate int) error {
	if len(samples) == 0 {
		return fmt.Errorf("audio: no samples to save")
	}
	if rate <= 0 {
		return fmt.Errorf("audio: sample rate must be > 0")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing WAV %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing WAV %s: %w", path, err)
	}

	return nil
}

// drain pulls every sample out of a streamer, averaging the two channels.
func drain(s beep.Streamer) []float64 {
	var out []float64
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	return out
}

// bufferStreamer adapts a mono sample slice to beep.Streamer, duplicating
// the signal on both channels.
type bufferStreamer struct {
	samples []float64
	pos     int
}

func (b *bufferStreamer) Stream(out [][2]float64) (int, bool) {
	if b.pos >= len(b.samples) {
		return 0, false
	}
	n := 0
	for ; n < len(out) && b.pos < len(b.samples); n++ {
		s := b.samples[b.pos]
		out[n][0] = s
		out[n][1] = s
		b.pos++
	}
	return n, true
}

func (b *bufferStreamer) Err() error { return nil }
