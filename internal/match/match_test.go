package match

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fretless/tabscribe/internal/audio"
	"github.com/fretless/tabscribe/internal/synth"
	"github.com/fretless/tabscribe/internal/tab"
)

func matchSine(freq, duration float64, rate int) []float64 {
	samples := make([]float64, int(duration*float64(rate)))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return samples
}

func TestSimilaritySelf(t *testing.T) {
	s := matchSine(440, 1.0, searchRate)
	score, err := Similarity(s, s, searchRate)
	if err != nil {
		t.Fatalf("Similarity() error = %v", err)
	}
	// Chroma matches itself; the onset term contributes nothing for a
	// steady tone.
	if score < 0.6 {
		t.Errorf("self similarity = %v, want >= 0.6", score)
	}
}

func TestSimilarityDiscriminates(t *testing.T) {
	a := matchSine(440, 1.0, searchRate)    // A4
	b := matchSine(622.25, 1.0, searchRate) // D#5, a tritone away

	same, err := Similarity(a, a, searchRate)
	if err != nil {
		t.Fatalf("Similarity() error = %v", err)
	}
	different, err := Similarity(a, b, searchRate)
	if err != nil {
		t.Fatalf("Similarity() error = %v", err)
	}

	if different >= same {
		t.Errorf("mismatched tones scored %v, same tone %v; want lower", different, same)
	}
}

func TestSimilarityShortInput(t *testing.T) {
	score, err := Similarity(make([]float64, 100), make([]float64, 100), searchRate)
	if err != nil {
		t.Fatalf("Similarity() error = %v", err)
	}
	if score != 0 {
		t.Errorf("Similarity() on short input = %v, want 0", score)
	}
}

func TestChromaFold(t *testing.T) {
	mags, err := spectrogram(matchSine(440, 0.5, searchRate))
	if err != nil {
		t.Fatalf("spectrogram() error = %v", err)
	}
	if len(mags) == 0 {
		t.Fatal("spectrogram() returned no frames")
	}

	chroma := chromaFold(mags, searchRate)

	// Pitch class A (9) should dominate every frame of a 440 Hz tone.
	for f, frame := range chroma {
		bestPC := 0
		for pc := 1; pc < 12; pc++ {
			if frame[pc] > frame[bestPC] {
				bestPC = pc
			}
		}
		if bestPC != 9 {
			t.Fatalf("frame %d: dominant pitch class %d, want 9 (A)", f, bestPC)
		}
	}
}

func TestOnsetEnvelope(t *testing.T) {
	// Silence then a tone: the onset envelope should peak near the
	// transition.
	rate := searchRate
	samples := append(make([]float64, rate/2), matchSine(440, 0.5, rate)...)
	mags, err := spectrogram(samples)
	if err != nil {
		t.Fatalf("spectrogram() error = %v", err)
	}
	env := onsetEnvelope(mags)
	if len(env) == 0 {
		t.Fatal("empty onset envelope")
	}

	peakAt := 0
	for i, v := range env {
		if v > env[peakAt] {
			peakAt = i
		}
	}
	transitionFrame := (rate / 2) / hopLength
	if d := peakAt - transitionFrame; d < -5 || d > 5 {
		t.Errorf("onset peak at frame %d, want near %d", peakAt, transitionFrame)
	}
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	if r := pearson(a, a); math.Abs(r-1) > 1e-9 {
		t.Errorf("pearson(a, a) = %v, want 1", r)
	}
	inv := []float64{4, 3, 2, 1}
	if r := pearson(a, inv); math.Abs(r+1) > 1e-9 {
		t.Errorf("pearson(a, inv) = %v, want -1", r)
	}
	flat := []float64{2, 2, 2, 2}
	if r := pearson(a, flat); r != 0 {
		t.Errorf("pearson(a, flat) = %v, want 0", r)
	}
}

func TestOptimize(t *testing.T) {
	if testing.Short() {
		t.Skip("parameter search is slow")
	}

	tmp := t.TempDir()

	// Source recording: a rendered single-note tab, so the search has a
	// realistic target.
	grid := tab.NewGrid(2)
	grid.Rows[0][0] = "5" // A4
	grid.Rows[0][1] = "5"
	tabText := tab.Render(grid)

	source, _, err := synth.RenderText(tabText, synth.DefaultOptions(searchRate))
	if err != nil {
		t.Fatalf("rendering source: %v", err)
	}
	srcPath := filepath.Join(tmp, "source.wav")
	if err := audio.SaveWAV(srcPath, source, searchRate); err != nil {
		t.Fatalf("saving source: %v", err)
	}

	outPath := filepath.Join(tmp, "matched.wav")
	res, err := Optimize(tabText, srcPath, outPath, Options{SampleRate: searchRate})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	if math.IsNaN(res.Score) || res.Score <= 0 {
		t.Errorf("Score = %v, want > 0 when matching a rendition of itself", res.Score)
	}
	if res.Params.StepSeconds <= 0 || res.Params.NoteSeconds <= 0 {
		t.Errorf("degenerate params: %+v", res.Params)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}
