package autotune

import (
	"math"
	"testing"

	"github.com/fretless/tabscribe/internal/pitch"
)

func tuneSine(freq, duration float64, rate int) []float64 {
	samples := make([]float64, int(duration*float64(rate)))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return samples
}

func TestFindBest(t *testing.T) {
	det, err := pitch.NewDetector(44100, "E2", "E6")
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	res, err := FindBest(tuneSine(440, 1.0, 44100), det, Options{})
	if err != nil {
		t.Fatalf("FindBest() error = %v", err)
	}

	if len(res.Notes) == 0 {
		t.Fatal("FindBest() found no notes in a steady tone")
	}
	if res.Notes[0].Name != "A4" {
		t.Errorf("first note = %q, want A4", res.Notes[0].Name)
	}

	// Winning parameters come from the default grids.
	validDur := map[float64]bool{0.02: true, 0.03: true, 0.04: true}
	if !validDur[res.MinDuration] {
		t.Errorf("MinDuration = %v, not from the search grid", res.MinDuration)
	}
	validClarity := map[float64]bool{0.15: true, 0.20: true, 0.25: true}
	if !validClarity[res.MinClarity] {
		t.Errorf("MinClarity = %v, not from the search grid", res.MinClarity)
	}
}

func TestFindBestSilence(t *testing.T) {
	det, err := pitch.NewDetector(44100, "E2", "E6")
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	res, err := FindBest(make([]float64, 44100), det, Options{})
	if err != nil {
		t.Fatalf("FindBest() error = %v", err)
	}
	if len(res.Notes) != 0 {
		t.Errorf("FindBest() on silence = %d notes, want 0", len(res.Notes))
	}
}

func TestFindBestCustomGrid(t *testing.T) {
	det, err := pitch.NewDetector(44100, "E2", "E6")
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	res, err := FindBest(tuneSine(220, 0.5, 44100), det, Options{
		MinDurations: []float64{0.05},
		MinClarities: []float64{0.5},
	})
	if err != nil {
		t.Fatalf("FindBest() error = %v", err)
	}
	if res.MinDuration != 0.05 || res.MinClarity != 0.5 {
		t.Errorf("params = %v/%v, want 0.05/0.5", res.MinDuration, res.MinClarity)
	}
	if len(res.Notes) == 0 || res.Notes[0].Name != "A3" {
		t.Errorf("notes = %+v, want a single A3", res.Notes)
	}
}
