// Package selftest checks the pitch pipeline end to end against a known
// signal.
package selftest

import (
	"math"

	"github.com/fretless/tabscribe/internal/pitch"
)

// Result reports a self-test outcome.
type Result struct {
	ExpectedNote  string
	DetectedNote  string
	DetectedCount int
	Success       bool
}

// Run generates one second of 440 Hz sine at the detector's rate and
// verifies the first extracted note is A4.
func Run(det *pitch.Detector) (Result, error) {
	const (
		freq     = 440.0
		duration = 1.0
		expected = "A4"
	)

	rate := det.SampleRate()
	samples := make([]float64, int(duration*float64(rate)))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}

	notes, err := det.Notes(samples, pitch.DefaultExtractOptions())
	if err != nil {
		return Result{}, err
	}

	res := Result{
		ExpectedNote:  expected,
		DetectedCount: len(notes),
	}
	if len(notes) > 0 {
		res.DetectedNote = notes[0].Name
	}
	res.Success = res.DetectedNote == expected

	return res, nil
}
