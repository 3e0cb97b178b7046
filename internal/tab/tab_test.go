package tab

import (
	"strings"
	"testing"

	"github.com/fretless/tabscribe/internal/music"
	"github.com/fretless/tabscribe/internal/pitch"
)

func TestPositionForStandardTuning(t *testing.T) {
	// Known fingerings in standard tuning with open-position preference.
	cases := []struct {
		note       string
		wantString int
		wantFret   int
	}{
		{"E2", 6, 0},
		{"F2", 6, 1},
		{"G2", 6, 3},
		{"A2", 5, 0},
		{"B2", 5, 2},
		{"C3", 5, 3},
		{"D3", 4, 0},
		{"E3", 4, 2},
		{"G3", 3, 0},
		{"A3", 3, 2},
		{"B3", 2, 0},
		{"C4", 2, 1},
		{"D4", 2, 3},
		{"E4", 1, 0},
		{"F4", 1, 1},
		{"G4", 1, 3},
		{"A4", 1, 5},
	}
	for _, c := range cases {
		midi, err := music.NameToMIDI(c.note)
		if err != nil {
			t.Fatalf("NameToMIDI(%q) error = %v", c.note, err)
		}
		pos, ok := PositionFor(midi, 15)
		if !ok {
			t.Errorf("PositionFor(%s) reported out of range", c.note)
		}
		if pos.String != c.wantString || pos.Fret != c.wantFret {
			t.Errorf("PositionFor(%s) = string %d fret %d, want string %d fret %d",
				c.note, pos.String, pos.Fret, c.wantString, c.wantFret)
		}
	}
}

func TestPositionForOutOfRange(t *testing.T) {
	// Below low E clamps to the open low E string.
	pos, ok := PositionFor(30, 15)
	if ok {
		t.Error("PositionFor(30) should report out of range")
	}
	if pos.String != 6 || pos.Fret != 0 {
		t.Errorf("PositionFor(30) = %+v, want string 6 fret 0", pos)
	}

	// Above the top of the fretboard clamps to the high e at max fret.
	pos, ok = PositionFor(100, 15)
	if ok {
		t.Error("PositionFor(100) should report out of range")
	}
	if pos.String != 1 || pos.Fret != 15 {
		t.Errorf("PositionFor(100) = %+v, want string 1 fret 15", pos)
	}
}

func TestGenerateAndRender(t *testing.T) {
	notes := []pitch.Note{
		{Name: "E2", MIDI: 40, Start: 0.0, Duration: 0.2},
		{Name: "A4", MIDI: 69, Start: 0.3, Duration: 0.2},
	}
	grid, clamped := Generate(notes, 15)
	if clamped != 0 {
		t.Errorf("Generate() clamped = %d, want 0", clamped)
	}
	if grid.Cols != 2 {
		t.Fatalf("Generate() cols = %d, want 2", grid.Cols)
	}

	// E2 is the open low E (row 5), A4 is fret 5 on the high e (row 0).
	if grid.Rows[5][0] != "0" {
		t.Errorf("grid.Rows[5][0] = %q, want \"0\"", grid.Rows[5][0])
	}
	if grid.Rows[0][1] != "5" {
		t.Errorf("grid.Rows[0][1] = %q, want \"5\"", grid.Rows[0][1])
	}

	text := Render(grid)
	if !strings.Contains(text, "GUITAR TABS") {
		t.Error("Render() missing title")
	}
	for _, name := range []string{"e|", "B|", "G|", "D|", "A|", "E|"} {
		if !strings.Contains(text, name) {
			t.Errorf("Render() missing string line %q", name)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(NewGrid(0)); got != "No tabs generated" {
		t.Errorf("Render(empty) = %q", got)
	}
	if got := Render(nil); got != "No tabs generated" {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	notes := []pitch.Note{
		{Name: "E2", MIDI: 40},
		{Name: "B3", MIDI: 59},
		{Name: "A4", MIDI: 69},
	}
	grid, _ := Generate(notes, 15)
	text := Render(grid)

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Cols != grid.Cols {
		t.Fatalf("Parse() cols = %d, want %d", parsed.Cols, grid.Cols)
	}
	for r := 0; r < NumStrings; r++ {
		for c := 0; c < grid.Cols; c++ {
			if parsed.Rows[r][c] != grid.Rows[r][c] {
				t.Errorf("cell [%d][%d] = %q, want %q", r, c, parsed.Rows[r][c], grid.Rows[r][c])
			}
		}
	}
}

func TestParseRejectsShortInput(t *testing.T) {
	if _, err := Parse("e|--1--|\nB|--2--|"); err == nil {
		t.Error("Parse() with two string lines should return error")
	}
	if _, err := Parse("not a tab at all"); err == nil {
		t.Error("Parse() with no string lines should return error")
	}
}
