package pitch

import (
	"math"

	"github.com/fretless/tabscribe/internal/music"
)

// Note is one detected note event.
type Note struct {
	Name      string
	MIDI      int
	Frequency float64
	Start     float64
	End       float64
	Duration  float64
}

// ExtractOptions controls note segmentation.
type ExtractOptions struct {
	// MinNoteDuration drops runs shorter than this many seconds.
	MinNoteDuration float64
	// MinClarity is the clarity a frame needs to count as voiced.
	MinClarity float64
	// MergeGap joins adjacent same-name notes separated by at most this
	// many seconds.
	MergeGap float64
}

// DefaultExtractOptions mirrors the config defaults.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		MinNoteDuration: 0.1,
		MinClarity:      0.75,
		MergeGap:        0.05,
	}
}

// Notes runs pitch tracking on samples and segments the track into note
// events. The result is time-ordered and non-overlapping.
func (d *Detector) Notes(samples []float64, opts ExtractOptions) ([]Note, error) {
	f0, clarity, err := d.Track(samples)
	if err != nil {
		return nil, err
	}
	times := d.FrameTimes(len(f0))

	var notes []Note
	var cur *Note

	flush := func(end float64) {
		if cur == nil {
			return
		}
		dur := end - cur.Start
		if dur >= opts.MinNoteDuration {
			cur.End = end
			cur.Duration = dur
			notes = append(notes, *cur)
		}
		cur = nil
	}

	for i, freq := range f0 {
		t := times[i]

		voiced := clarity[i] >= opts.MinClarity && !math.IsNaN(freq)
		if !voiced {
			flush(t)
			continue
		}

		name, midi, _, nerr := music.NearestNote(freq)
		if nerr != nil {
			flush(t)
			continue
		}

		if cur != nil && cur.Name != name {
			flush(t)
		}
		if cur == nil {
			cur = &Note{
				Name:      name,
				MIDI:      midi,
				Frequency: freq,
				Start:     t,
			}
		}
	}

	if len(times) > 0 {
		flush(times[len(times)-1])
	}

	return mergeAdjacent(notes, opts.MergeGap), nil
}

// mergeAdjacent joins consecutive same-name notes separated by a gap of at
// most mergeGap seconds.
func mergeAdjacent(notes []Note, mergeGap float64) []Note {
	if len(notes) == 0 {
		return notes
	}

	merged := []Note{notes[0]}
	for _, n := range notes[1:] {
		last := &merged[len(merged)-1]
		gap := n.Start - last.End
		if n.Name == last.Name && gap <= mergeGap {
			last.End = n.End
			last.Duration = last.End - last.Start
		} else {
			merged = append(merged, n)
		}
	}
	return merged
}
