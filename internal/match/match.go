package match

import (
	"fmt"
	"sort"

	"github.com/fretless/tabscribe/internal/audio"
	"github.com/fretless/tabscribe/internal/synth"
)

const (
	searchRate     = 22050
	previewSeconds = 24.0
)

// Params are the synthesis parameters under search.
type Params struct {
	StepSeconds        float64
	NoteSeconds        float64
	Decay              float64
	Gain               float64
	TransposeSemitones int
}

// Result is the best parameter set found and where the final render went.
type Result struct {
	Score      float64
	Params     Params
	OutputPath string
}

// Options controls the optimization run.
type Options struct {
	// SampleRate of the final render; <= 0 selects 44100.
	SampleRate int
}

// Optimize searches synthesis parameters so the rendered tab best matches
// the recording at originalPath, then renders the winner at full rate to
// outputPath. The search scores short previews at a reduced rate: a
// coarse grid pass followed by a local refinement around the best point.
func Optimize(tabText, originalPath, outputPath string, opts Options) (Result, error) {
	finalRate := opts.SampleRate
	if finalRate <= 0 {
		finalRate = 44100
	}

	original, _, err := audio.LoadFile(originalPath, searchRate)
	if err != nil {
		return Result{}, fmt.Errorf("match: loading original: %w", err)
	}
	if n := int(previewSeconds * searchRate); len(original) > n {
		original = original[:n]
	}

	score := func(p Params) (float64, error) {
		rendered, _, rerr := synth.RenderText(tabText, synth.Options{
			SampleRate:         searchRate,
			StepSeconds:        p.StepSeconds,
			NoteSeconds:        p.NoteSeconds,
			Decay:              p.Decay,
			Gain:               p.Gain,
			TransposeSemitones: p.TransposeSemitones,
			MaxDuration:        previewSeconds,
		})
		if rerr != nil {
			return 0, rerr
		}
		return Similarity(original, rendered, searchRate)
	}

	best := Result{Score: -1e9, OutputPath: outputPath}

	evaluate := func(steps, notes, decays, gains []float64, transposes []int) error {
		for _, step := range steps {
			for _, note := range notes {
				for _, decay := range decays {
					for _, gain := range gains {
						for _, trans := range transposes {
							p := Params{
								StepSeconds:        step,
								NoteSeconds:        note,
								Decay:              decay,
								Gain:               gain,
								TransposeSemitones: trans,
							}
							s, serr := score(p)
							if serr != nil {
								return serr
							}
							if s > best.Score {
								best.Score = s
								best.Params = p
							}
						}
					}
				}
			}
		}
		return nil
	}

	// Coarse pass.
	err = evaluate(
		[]float64{0.11, 0.14, 0.17},
		[]float64{0.14, 0.19, 0.24},
		[]float64{0.993, 0.996, 0.998},
		[]float64{0.28, 0.38, 0.48},
		[]int{-2, -1, 0, 1, 2},
	)
	if err != nil {
		return Result{}, fmt.Errorf("match: coarse search: %w", err)
	}

	// Local refinement around the coarse winner.
	p := best.Params
	err = evaluate(
		[]float64{max(0.08, p.StepSeconds-0.015), p.StepSeconds, min(0.22, p.StepSeconds+0.015)},
		[]float64{max(0.10, p.NoteSeconds-0.02), p.NoteSeconds, min(0.30, p.NoteSeconds+0.02)},
		[]float64{max(0.990, p.Decay-0.001), p.Decay, min(0.999, p.Decay+0.001)},
		[]float64{max(0.15, p.Gain-0.06), p.Gain, min(0.65, p.Gain+0.06)},
		uniqueInts(p.TransposeSemitones-1, p.TransposeSemitones, p.TransposeSemitones+1),
	)
	if err != nil {
		return Result{}, fmt.Errorf("match: refinement search: %w", err)
	}

	_, err = synth.RenderFile(tabText, outputPath, synth.Options{
		SampleRate:         finalRate,
		StepSeconds:        best.Params.StepSeconds,
		NoteSeconds:        best.Params.NoteSeconds,
		Decay:              best.Params.Decay,
		Gain:               best.Params.Gain,
		TransposeSemitones: best.Params.TransposeSemitones,
	})
	if err != nil {
		return Result{}, fmt.Errorf("match: final render: %w", err)
	}

	return best, nil
}

func uniqueInts(xs ...int) []int {
	sort.Ints(xs)
	out := xs[:0]
	for i, x := range xs {
		if i == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
