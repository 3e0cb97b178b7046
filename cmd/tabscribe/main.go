package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fretless/tabscribe/internal/audio"
	"github.com/fretless/tabscribe/internal/autotune"
	"github.com/fretless/tabscribe/internal/config"
	"github.com/fretless/tabscribe/internal/match"
	"github.com/fretless/tabscribe/internal/pitch"
	"github.com/fretless/tabscribe/internal/selftest"
	"github.com/fretless/tabscribe/internal/synth"
	"github.com/fretless/tabscribe/internal/tab"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/tabscribe/config.yaml)")
	inPath := flag.String("in", "", "audio file to transcribe (.wav, .mp3, .flac)")
	recordFor := flag.Duration("record", 0, "record from the microphone for this long (e.g. 5s) instead of -in")
	outPath := flag.String("o", "", "write the tab to this file as well as stdout")
	saveAudio := flag.String("save-audio", "", "save the recorded audio as WAV")
	best := flag.Bool("best", false, "search extraction parameters for the best transcription")
	refine := flag.Bool("refine", false, "refine fret choices against the input audio")
	synthOut := flag.String("synth", "", "render the tab as plucked-guitar audio to this WAV file")
	play := flag.Bool("play", false, "play the rendered tab audio")
	matchOut := flag.String("match", "", "render a parameter-matched version of the tab to this WAV file (requires -in)")
	runSelfTest := flag.Bool("selftest", false, "run the sine-wave pipeline check and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	printBanner(cfg)

	detector, err := pitch.NewDetector(cfg.Audio.SampleRate, cfg.Detect.FminNote, cfg.Detect.FmaxNote)
	if err != nil {
		log.Fatalf("pitch detector: %v", err)
	}

	if *runSelfTest {
		res, err := selftest.Run(detector)
		if err != nil {
			log.Fatalf("self-test: %v", err)
		}
		log.Printf("Self-test: expected %s, detected %q (%d notes)", res.ExpectedNote, res.DetectedNote, res.DetectedCount)
		if !res.Success {
			log.Fatal("Self-test FAILED")
		}
		log.Println("Self-test passed")
		return
	}

	if (*inPath == "") == (*recordFor == 0) {
		log.Fatal("exactly one of -in or -record is required (see -h)")
	}
	if *matchOut != "" && *inPath == "" {
		log.Fatal("-match requires -in")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples, err := acquire(ctx, cfg, *inPath, *recordFor)
	if err != nil {
		log.Fatalf("audio input: %v", err)
	}
	log.Printf("Got %.1fs of audio", float64(len(samples))/float64(cfg.Audio.SampleRate))

	if *saveAudio != "" {
		if err := audio.SaveWAV(*saveAudio, samples, cfg.Audio.SampleRate); err != nil {
			log.Fatalf("saving audio: %v", err)
		}
		log.Printf("Audio saved: %s", *saveAudio)
	}

	log.Println("Analyzing audio...")
	notes, err := extract(samples, detector, cfg, *best)
	if err != nil {
		log.Fatalf("note extraction: %v", err)
	}
	log.Printf("Notes found: %d", len(notes))

	grid, clamped := tab.Generate(notes, cfg.Tab.MaxFret)
	if clamped > 0 {
		log.Printf("WARNING: %d notes were outside the playable range and clamped", clamped)
	}
	tabText := tab.Render(grid)

	if *refine {
		res, err := tab.Refine(tabText, samples, cfg.Audio.SampleRate, tab.RefineOptions{
			StepSeconds: cfg.Synth.StepSeconds,
			MaxFret:     cfg.Tab.MaxFret,
			FminNote:    cfg.Detect.FminNote,
			FmaxNote:    cfg.Detect.FmaxNote,
		})
		if err != nil {
			log.Fatalf("refining tab: %v", err)
		}
		log.Printf("Refined tab: %d changes (step %.2fs)", res.Changes, res.StepSeconds)
		tabText = res.Text
	}

	fmt.Println(tabText)

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(tabText), 0644); err != nil {
			log.Fatalf("saving tab: %v", err)
		}
		log.Printf("Tabs saved to: %s", *outPath)
	}

	synthOpts := synth.Options{
		SampleRate:  cfg.Audio.SampleRate,
		StepSeconds: cfg.Synth.StepSeconds,
		NoteSeconds: cfg.Synth.NoteSeconds,
		Decay:       cfg.Synth.Decay,
		Gain:        cfg.Synth.Gain,
	}

	if *synthOut != "" || *play {
		rendered, res, err := synth.RenderText(tabText, synthOpts)
		if err != nil {
			log.Fatalf("rendering tab audio: %v", err)
		}
		log.Printf("Rendered %.1fs of audio (%d notes)", res.Duration, res.NotesCount)

		if *synthOut != "" {
			if err := audio.SaveWAV(*synthOut, rendered, cfg.Audio.SampleRate); err != nil {
				log.Fatalf("saving rendered audio: %v", err)
			}
			log.Printf("Rendered audio saved: %s", *synthOut)
		}
		if *play {
			log.Println("Playing...")
			if err := audio.Play(rendered, cfg.Audio.SampleRate); err != nil {
				log.Fatalf("playback: %v", err)
			}
		}
	}

	if *matchOut != "" {
		log.Println("Matching synth parameters against the original (this can take a while)...")
		start := time.Now()
		res, err := match.Optimize(tabText, *inPath, *matchOut, match.Options{SampleRate: cfg.Audio.SampleRate})
		if err != nil {
			log.Fatalf("matching: %v", err)
		}
		log.Printf("Best score %.3f in %s (step %.3fs, note %.3fs, decay %.3f, gain %.2f, transpose %+d)",
			res.Score, time.Since(start).Round(time.Second),
			res.Params.StepSeconds, res.Params.NoteSeconds, res.Params.Decay,
			res.Params.Gain, res.Params.TransposeSemitones)
		log.Printf("Matched audio saved: %s", res.OutputPath)
	}

	log.Println("Done!")
}

// acquire records from the microphone or loads the input file.
func acquire(ctx context.Context, cfg *config.Config, inPath string, recordFor time.Duration) ([]float64, error) {
	if inPath != "" {
		log.Printf("Loading file: %s", inPath)
		samples, _, err := audio.LoadFile(inPath, cfg.Audio.SampleRate)
		return samples, err
	}

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("initializing audio recorder: %w\n\nEnsure microphone access is granted", err)
	}
	defer recorder.Close()

	log.Printf("Recording %s...", recordFor)
	samples, err := recorder.Record(ctx, recordFor)
	if err != nil && len(samples) == 0 {
		return nil, err
	}
	log.Println("Recording complete!")
	return samples, nil
}

// extract segments samples into notes, optionally searching the extraction
// parameter grid first.
func extract(samples []float64, detector *pitch.Detector, cfg *config.Config, best bool) ([]pitch.Note, error) {
	if best {
		log.Println("Searching extraction parameters...")
		res, err := autotune.FindBest(samples, detector, autotune.Options{})
		if err != nil {
			return nil, err
		}
		log.Printf("Best extraction: min duration %.2fs, min clarity %.2f (score %.1f)",
			res.MinDuration, res.MinClarity, res.Score)
		return res.Notes, nil
	}

	return detector.Notes(samples, pitch.ExtractOptions{
		MinNoteDuration: cfg.Detect.MinNoteDuration,
		MinClarity:      cfg.Detect.MinClarity,
		MergeGap:        cfg.Detect.MergeGap,
	})
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== tabscribe ===")
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Detect:  %s..%s, clarity %.2f, min note %.2fs\n",
		cfg.Detect.FminNote, cfg.Detect.FmaxNote, cfg.Detect.MinClarity, cfg.Detect.MinNoteDuration)
	fmt.Printf("  Tab:     frets 0..%d\n", cfg.Tab.MaxFret)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
