package audio

import (
	"math"
	"path/filepath"
	"testing"
)

func fileSine(freq, duration float64, rate int) []float64 {
	samples := make([]float64, int(duration*float64(rate)))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return samples
}

func TestSaveLoadWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	original := fileSine(440, 0.5, 8000)

	if err := SaveWAV(path, original, 8000); err != nil {
		t.Fatalf("SaveWAV() error = %v", err)
	}

	loaded, rate, err := LoadFile(path, 8000)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if rate != 8000 {
		t.Errorf("rate = %d, want 8000", rate)
	}
	if len(loaded) != len(original) {
		t.Fatalf("len = %d, want %d", len(loaded), len(original))
	}

	// 16-bit quantization leaves the waveform essentially intact.
	var maxErr float64
	for i := range loaded {
		if e := math.Abs(loaded[i] - original[i]); e > maxErr {
			maxErr = e
		}
	}
	if maxErr > 0.001 {
		t.Errorf("max sample error = %v, want < 0.001", maxErr)
	}
}

func TestLoadFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := SaveWAV(path, fileSine(440, 0.5, 8000), 8000); err != nil {
		t.Fatalf("SaveWAV() error = %v", err)
	}

	loaded, rate, err := LoadFile(path, 4000)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if rate != 4000 {
		t.Errorf("rate = %d, want 4000", rate)
	}

	want := 0.5 * 4000
	if got := float64(len(loaded)); math.Abs(got-want) > 200 {
		t.Errorf("resampled length = %v, want ~%v", got, want)
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	if _, _, err := LoadFile("clip.ogg", 44100); err == nil {
		t.Error("LoadFile() with unsupported extension should return error")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, _, err := LoadFile("/nonexistent/clip.wav", 44100); err == nil {
		t.Error("LoadFile() with missing file should return error")
	}
}

func TestSaveWAVValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := SaveWAV(path, nil, 44100); err == nil {
		t.Error("SaveWAV() with no samples should return error")
	}
	if err := SaveWAV(path, []float64{0.1}, 0); err == nil {
		t.Error("SaveWAV() with zero rate should return error")
	}
}

func TestSaveWAVClips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.wav")
	if err := SaveWAV(path, []float64{2.0, -2.0, 0.0}, 8000); err != nil {
		t.Fatalf("SaveWAV() error = %v", err)
	}

	loaded, _, err := LoadFile(path, 8000)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	for i, s := range loaded {
		if s > 1 || s < -1 {
			t.Errorf("sample %d = %v, want within [-1, 1]", i, s)
		}
	}
}

func TestDrainAveragesChannels(t *testing.T) {
	in := []float64{0.5, -0.5, 0.25}
	got := drain(&bufferStreamer{samples: in})
	if len(got) != len(in) {
		t.Fatalf("drain() len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if math.Abs(got[i]-in[i]) > 1e-12 {
			t.Errorf("drain()[%d] = %v, want %v", i, got[i], in[i])
		}
	}
}
