// Package autotune searches note-extraction parameters for the setting
// that yields the richest plausible transcription of a clip.
package autotune

import (
	"github.com/fretless/tabscribe/internal/pitch"
)

const (
	// previewSeconds bounds the audio used during the search; the winning
	// parameters are re-run on the full clip.
	previewSeconds = 45.0

	// densityLimit is the notes-per-second rate above which candidates
	// are penalized as over-segmented.
	densityLimit = 2.0

	// densityPenalty scales the over-density penalty.
	densityPenalty = 120.0
)

// Options bounds the parameter grid. Zero-valued fields select defaults.
type Options struct {
	MinDurations []float64
	MinClarities []float64
	MergeGap     float64
}

// Result is the winning extraction.
type Result struct {
	Notes       []pitch.Note
	MinDuration float64
	MinClarity  float64
	Score       float64
}

// FindBest tries each grid point on a preview of the clip, scoring by
// note count with a penalty for implausibly dense transcriptions, then
// re-runs extraction on the full clip with the winning parameters.
func FindBest(samples []float64, det *pitch.Detector, opts Options) (Result, error) {
	durations := opts.MinDurations
	if len(durations) == 0 {
		durations = []float64{0.02, 0.03, 0.04}
	}
	clarities := opts.MinClarities
	if len(clarities) == 0 {
		clarities = []float64{0.15, 0.20, 0.25}
	}
	mergeGap := opts.MergeGap
	if mergeGap <= 0 {
		mergeGap = 0.03
	}

	preview := samples
	if n := int(previewSeconds * float64(det.SampleRate())); n > 0 && n < len(preview) {
		preview = preview[:n]
	}
	previewDur := float64(len(preview)) / float64(det.SampleRate())
	if previewDur <= 0 {
		previewDur = 1
	}

	var best *Result
	for _, md := range durations {
		for _, mc := range clarities {
			notes, err := det.Notes(preview, pitch.ExtractOptions{
				MinNoteDuration: md,
				MinClarity:      mc,
				MergeGap:        mergeGap,
			})
			if err != nil {
				return Result{}, err
			}

			density := float64(len(notes)) / previewDur
			penalty := 0.0
			if density > densityLimit {
				penalty = (density - densityLimit) * densityPenalty
			}
			score := float64(len(notes)) - penalty

			if best == nil || score > best.Score {
				best = &Result{
					Notes:       notes,
					MinDuration: md,
					MinClarity:  mc,
					Score:       score,
				}
			}
		}
	}

	// Re-run on the full clip with the winning parameters.
	finalNotes, err := det.Notes(samples, pitch.ExtractOptions{
		MinNoteDuration: best.MinDuration,
		MinClarity:      best.MinClarity,
		MergeGap:        mergeGap,
	})
	if err != nil {
		return Result{}, err
	}
	best.Notes = finalNotes

	return *best, nil
}
