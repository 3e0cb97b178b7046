package tab

import (
	"math"
	"strconv"

	"github.com/fretless/tabscribe/internal/music"
	"github.com/fretless/tabscribe/internal/pitch"
)

// DefaultStepSeconds is the assumed time between tab columns when no step
// is given; it matches the synthesizer default.
const DefaultStepSeconds = 0.14

// jumpPenalty discourages large fret moves when several candidates land
// equally close to the target pitch.
const jumpPenalty = 0.04

// minImprovement is the error reduction, in semitones, a fret change must
// buy before it is applied.
const minImprovement = 0.8

// RefineOptions controls tab refinement.
type RefineOptions struct {
	// StepSeconds is the time between columns; <= 0 selects the default.
	StepSeconds float64
	// MaxFret bounds candidate frets; <= 0 selects 24.
	MaxFret int
	// FminNote and FmaxNote bound the pitch tracker; empty selects E2/E6.
	FminNote, FmaxNote string
}

// RefineResult reports the outcome of a refinement pass.
type RefineResult struct {
	Text        string
	Changes     int
	StepSeconds float64
}

// Refine corrects fret choices in rendered tablature against the source
// recording: each column's cells are nudged toward the dominant pitch
// detected at that column's time, preserving the tab's rhythm and
// structure.
func Refine(tabText string, samples []float64, rate int, opts RefineOptions) (RefineResult, error) {
	grid, err := Parse(tabText)
	if err != nil {
		return RefineResult{}, err
	}

	step := opts.StepSeconds
	if step <= 0 {
		step = DefaultStepSeconds
	}
	maxFret := opts.MaxFret
	if maxFret <= 0 {
		maxFret = 24
	}
	fmin := opts.FminNote
	if fmin == "" {
		fmin = "E2"
	}
	fmax := opts.FmaxNote
	if fmax == "" {
		fmax = "E6"
	}

	det, err := pitch.NewDetector(rate, fmin, fmax)
	if err != nil {
		return RefineResult{}, err
	}

	// Only the span the tab covers matters, plus a little slack.
	preview := float64(grid.Cols)*step + 0.5
	if preview < 2.0 {
		preview = 2.0
	}
	if n := int(preview * float64(rate)); n < len(samples) {
		samples = samples[:n]
	}

	f0, _, err := det.Track(samples)
	if err != nil {
		return RefineResult{}, err
	}
	if len(f0) == 0 {
		return RefineResult{Text: Render(grid), StepSeconds: step}, nil
	}

	midiTrack := make([]float64, len(f0))
	for i, freq := range f0 {
		if math.IsNaN(freq) {
			midiTrack[i] = math.NaN()
			continue
		}
		m, merr := music.HzToMIDI(freq)
		if merr != nil {
			midiTrack[i] = math.NaN()
			continue
		}
		midiTrack[i] = m
	}

	changes := 0
	for c := 0; c < grid.Cols; c++ {
		t := float64(c) * step
		idx := int(math.Round(t * float64(rate) / pitch.HopLength))
		if idx < 0 {
			idx = 0
		} else if idx >= len(midiTrack) {
			idx = len(midiTrack) - 1
		}

		target := midiTrack[idx]
		if math.IsNaN(target) {
			continue
		}

		for r := 0; r < NumStrings; r++ {
			token := grid.Rows[r][c]
			if token == Rest {
				continue
			}
			fret, perr := strconv.Atoi(token)
			if perr != nil {
				continue
			}

			stringNum := r + 1
			newFret := closestFret(fret, stringNum, target, maxFret)
			if newFret == fret {
				continue
			}

			openMIDI := float64(openStringMIDI[stringNum])
			oldErr := math.Abs(openMIDI + float64(fret) - target)
			newErr := math.Abs(openMIDI + float64(newFret) - target)
			if oldErr-newErr >= minImprovement {
				grid.Rows[r][c] = strconv.Itoa(newFret)
				changes++
			}
		}
	}

	return RefineResult{
		Text:        Render(grid),
		Changes:     changes,
		StepSeconds: step,
	}, nil
}

// closestFret searches semitone moves within an octave either way of the
// current fret, scoring pitch distance plus a small penalty per fret of
// movement.
func closestFret(current, stringNum int, targetMIDI float64, maxFret int) int {
	openMIDI := float64(openStringMIDI[stringNum])

	best := current
	bestScore := math.Abs(openMIDI + float64(current) - targetMIDI)

	for delta := -12; delta <= 12; delta++ {
		cand := current + delta
		if cand < 0 || cand > maxFret {
			continue
		}
		score := math.Abs(openMIDI+float64(cand)-targetMIDI) + jumpPenalty*math.Abs(float64(delta))
		if score < bestScore {
			bestScore = score
			best = cand
		}
	}

	return best
}
