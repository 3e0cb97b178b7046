// Package music converts between frequencies, MIDI numbers, and note names
// in twelve-tone equal temperament (A4 = 440 Hz = MIDI 69).
package music

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// noteNames are the pitch classes starting at C, sharps only. Rendered
// names use this spelling; parsing also accepts flats.
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// semitoneOf maps a note letter to its semitone offset within the octave.
var semitoneOf = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// HzToMIDI converts a frequency to a fractional MIDI number.
func HzToMIDI(freq float64) (float64, error) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, fmt.Errorf("music: frequency must be > 0, got %v", freq)
	}
	return 69 + 12*math.Log2(freq/440.0), nil
}

// MIDIToHz converts a MIDI number to a frequency in Hz.
func MIDIToHz(midi float64) float64 {
	return 440.0 * math.Pow(2, (midi-69)/12.0)
}

// MIDIToName returns the note name for a MIDI number, e.g. 69 -> "A4".
func MIDIToName(midi int) string {
	name := noteNames[((midi%12)+12)%12]
	octave := midi/12 - 1
	if midi < 0 && midi%12 != 0 {
		octave--
	}
	return fmt.Sprintf("%s%d", name, octave)
}

// NameToMIDI parses a note name like "E2", "F#3", or "Bb4" into its MIDI
// number.
func NameToMIDI(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("music: invalid note name %q", name)
	}

	letter := s[0] &^ 0x20 // uppercase
	semi, ok := semitoneOf[letter]
	if !ok {
		return 0, fmt.Errorf("music: invalid note letter in %q", name)
	}

	rest := s[1:]
	switch rest[0] {
	case '#':
		semi++
		rest = rest[1:]
	case 'b':
		semi--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("music: invalid octave in %q", name)
	}

	return (octave+1)*12 + semi, nil
}

// NoteToHz returns the frequency of a named note.
func NoteToHz(name string) (float64, error) {
	midi, err := NameToMIDI(name)
	if err != nil {
		return 0, err
	}
	return MIDIToHz(float64(midi)), nil
}

// NearestNote rounds a frequency to the closest note and reports the name,
// the MIDI number, and the deviation in cents.
func NearestNote(freq float64) (name string, midi int, cents float64, err error) {
	m, err := HzToMIDI(freq)
	if err != nil {
		return "", 0, 0, err
	}
	midi = int(math.Round(m))
	cents = 100 * (m - float64(midi))
	return MIDIToName(midi), midi, cents, nil
}
