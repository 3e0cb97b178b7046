package audio

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Play sends mono samples to the default output device and blocks until
// playback finishes.
func Play(samples []float64, rate int) error {
	if len(samples) == 0 {
		return fmt.Errorf("audio: no samples to play")
	}
	if rate <= 0 {
		return fmt.Errorf("audio: sample rate must be > 0")
	}

	sr := beep.SampleRate(rate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(&bufferStreamer{samples: samples}, beep.Callback(func() {
		close(done)
	})))
	<-done

	return nil
}
