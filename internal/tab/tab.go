// Package tab maps detected notes onto a six-string guitar fretboard in
// standard tuning and renders, parses, and refines text tablature.
package tab

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fretless/tabscribe/internal/pitch"
)

// NumStrings is the number of guitar strings.
const NumStrings = 6

// Rest is the grid token for a cell with no sounded note.
const Rest = "--"

// openStringMIDI holds the MIDI pitch of each open string, indexed by
// string number: 1 = high e (E4, 64) .. 6 = low E (E2, 40).
var openStringMIDI = [NumStrings + 1]int{0, 64, 59, 55, 50, 45, 40}

// stringNames are the row labels in rendering order, high e first.
var stringNames = [NumStrings]string{"e", "B", "G", "D", "A", "E"}

// OpenStringMIDI returns the MIDI pitch of an open string (1..6).
func OpenStringMIDI(stringNum int) int {
	return openStringMIDI[stringNum]
}

// Position is a fretboard location.
type Position struct {
	String int // 1 (high e) .. 6 (low E)
	Fret   int
}

// PositionFor picks the playable position for a MIDI pitch: the string
// giving the smallest fret within 0..maxFret. The second return is false
// when the pitch is out of range, in which case the position is clamped to
// the nearest playable extreme.
func PositionFor(midi, maxFret int) (Position, bool) {
	best := Position{String: -1}
	for s := 1; s <= NumStrings; s++ {
		fret := midi - openStringMIDI[s]
		if fret < 0 || fret > maxFret {
			continue
		}
		if best.String == -1 || fret < best.Fret {
			best = Position{String: s, Fret: fret}
		}
	}
	if best.String != -1 {
		return best, true
	}

	if midi < openStringMIDI[NumStrings] {
		return Position{String: NumStrings, Fret: 0}, false
	}
	return Position{String: 1, Fret: maxFret}, false
}

// Grid is a column-per-event token grid. Row 0 is the high e string
// (string 1); cells hold either a decimal fret number or Rest.
type Grid struct {
	Rows [NumStrings][]string
	Cols int
}

// NewGrid returns an all-rest grid with the given number of columns.
func NewGrid(cols int) *Grid {
	g := &Grid{Cols: cols}
	for r := 0; r < NumStrings; r++ {
		g.Rows[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			g.Rows[r][c] = Rest
		}
	}
	return g
}

// Generate lays out detected notes as one column per note event. It
// returns the grid and the number of notes that fell outside the playable
// range and were clamped.
func Generate(notes []pitch.Note, maxFret int) (*Grid, int) {
	g := NewGrid(len(notes))
	clamped := 0
	for c, n := range notes {
		pos, ok := PositionFor(n.MIDI, maxFret)
		if !ok {
			clamped++
		}
		g.Rows[pos.String-1][c] = strconv.Itoa(pos.Fret)
	}
	return g, clamped
}

// Render formats the grid as text tablature.
func Render(g *Grid) string {
	if g == nil || g.Cols == 0 {
		return "No tabs generated"
	}

	banner := strings.Repeat("=", 60)
	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("GUITAR TABS\n")
	b.WriteString(banner + "\n")

	for r := 0; r < NumStrings; r++ {
		cells := make([]string, g.Cols)
		for c := 0; c < g.Cols; c++ {
			token := g.Rows[r][c]
			if token == Rest {
				token = "-"
			}
			cells[c] = fmt.Sprintf("%2s", token)
		}
		b.WriteString(stringNames[r] + "|" + strings.Join(cells, "-") + "|\n")
	}

	b.WriteString(banner)
	return b.String()
}
