// Package synth renders text tablature to audio with a simple
// Karplus-Strong plucked-string model.
package synth

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/fretless/tabscribe/internal/audio"
	"github.com/fretless/tabscribe/internal/music"
	"github.com/fretless/tabscribe/internal/tab"
)

// Options controls tab synthesis.
type Options struct {
	SampleRate         int
	StepSeconds        float64 // time between tab columns
	NoteSeconds        float64 // length of each pluck
	Decay              float64 // string damping per sample pair, (0,1)
	Gain               float64 // per-note mixing gain
	TransposeSemitones int
	MaxDuration        float64 // truncate output after this many seconds; 0 = full length
}

// DefaultOptions returns the standard rendering parameters at a rate.
func DefaultOptions(rate int) Options {
	return Options{
		SampleRate:  rate,
		StepSeconds: 0.14,
		NoteSeconds: 0.18,
		Decay:       0.996,
		Gain:        0.35,
	}
}

// Result summarizes a render.
type Result struct {
	SampleRate int
	Duration   float64
	NotesCount int
}

// RenderText parses tablature text and renders it to mono samples.
func RenderText(tabText string, opts Options) ([]float64, Result, error) {
	grid, err := tab.Parse(tabText)
	if err != nil {
		return nil, Result{}, err
	}
	return RenderGrid(grid, opts)
}

// RenderGrid renders a parsed tab grid to mono samples. Each sounded cell
// becomes one pluck at its column's time offset; the mix is peak-limited
// to [-1, 1].
func RenderGrid(g *tab.Grid, opts Options) ([]float64, Result, error) {
	if opts.SampleRate <= 0 {
		return nil, Result{}, fmt.Errorf("synth: sample rate must be > 0")
	}
	if opts.StepSeconds <= 0 || opts.NoteSeconds <= 0 {
		return nil, Result{}, fmt.Errorf("synth: step and note durations must be > 0")
	}
	if opts.Decay <= 0 || opts.Decay >= 1 {
		return nil, Result{}, fmt.Errorf("synth: decay must be in (0, 1), got %v", opts.Decay)
	}

	totalDur := opts.NoteSeconds + float64(g.Cols)*opts.StepSeconds
	if totalDur < 0.1 {
		totalDur = 0.1
	}
	if opts.MaxDuration > 0 && totalDur > opts.MaxDuration {
		totalDur = opts.MaxDuration
	}

	out := make([]float64, int(totalDur*float64(opts.SampleRate)))
	notesCount := 0

	for c := 0; c < g.Cols; c++ {
		startIdx := int(float64(c) * opts.StepSeconds * float64(opts.SampleRate))
		if startIdx >= len(out) {
			break
		}
		for r := 0; r < tab.NumStrings; r++ {
			token := g.Rows[r][c]
			if token == tab.Rest {
				continue
			}
			fret, err := strconv.Atoi(token)
			if err != nil {
				continue
			}

			midi := tab.OpenStringMIDI(r+1) + fret + opts.TransposeSemitones
			freq := music.MIDIToHz(float64(midi))

			note := karplusStrong(freq, opts.NoteSeconds, opts.SampleRate, opts.Decay)
			for i, s := range note {
				idx := startIdx + i
				if idx >= len(out) {
					break
				}
				out[idx] += s * opts.Gain
			}
			notesCount++
		}
	}

	// Scale down only when the mix clips.
	peak := 0.0
	for _, s := range out {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}
	if peak > 1 {
		for i := range out {
			out[i] /= peak
		}
	}

	return out, Result{
		SampleRate: opts.SampleRate,
		Duration:   totalDur,
		NotesCount: notesCount,
	}, nil
}

// RenderFile renders tablature text and writes the result as a WAV file.
func RenderFile(tabText, outputPath string, opts Options) (Result, error) {
	samples, res, err := RenderText(tabText, opts)
	if err != nil {
		return Result{}, err
	}
	if err := audio.SaveWAV(outputPath, samples, opts.SampleRate); err != nil {
		return Result{}, err
	}
	return res, nil
}

// karplusStrong generates one plucked-string note: a noise burst of one
// period fed through an averaging delay loop, with short linear attack and
// release ramps to clean up the transients.
func karplusStrong(freq, duration float64, sampleRate int, decay float64) []float64 {
	nSamples := int(duration * float64(sampleRate))
	if nSamples < 1 {
		nSamples = 1
	}
	period := int(float64(sampleRate) / freq)
	if period < 2 {
		period = 2
	}

	buf := make([]float64, period)
	for i := range buf {
		buf[i] = 2*rand.Float64() - 1
	}

	out := make([]float64, nSamples)
	idx := 0
	for i := 0; i < nSamples; i++ {
		out[i] = buf[idx]
		next := (idx + 1) % period
		buf[idx] = decay * 0.5 * (buf[idx] + buf[next])
		idx = next
	}

	attack := int(0.003 * float64(sampleRate))
	if attack > 1 && attack < nSamples {
		for i := 0; i < attack; i++ {
			out[i] *= float64(i) / float64(attack-1)
		}
	}
	release := int(0.03 * float64(sampleRate))
	if release > 1 && release < nSamples {
		for i := 0; i < release; i++ {
			out[nSamples-release+i] *= 1 - float64(i)/float64(release-1)
		}
	}

	return out
}
