package selftest

import (
	"testing"

	"github.com/fretless/tabscribe/internal/pitch"
)

func TestRun(t *testing.T) {
	det, err := pitch.NewDetector(44100, "E2", "E6")
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}

	res, err := Run(det)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.ExpectedNote != "A4" {
		t.Errorf("ExpectedNote = %q, want A4", res.ExpectedNote)
	}
	if !res.Success {
		t.Errorf("self-test failed: detected %q (%d notes)", res.DetectedNote, res.DetectedCount)
	}
}
