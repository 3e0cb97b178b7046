package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fretless/tabscribe/internal/music"
)

// Config holds all application configuration.
type Config struct {
	Audio    AudioConfig  `yaml:"audio"`
	Detect   DetectConfig `yaml:"detect"`
	Tab      TabConfig    `yaml:"tab"`
	Synth    SynthConfig  `yaml:"synth"`
	LogLevel string       `yaml:"log_level"`
}

// AudioConfig holds capture and playback settings.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// DetectConfig holds note-extraction settings.
type DetectConfig struct {
	MinNoteDuration float64 `yaml:"min_note_duration"` // seconds
	MinClarity      float64 `yaml:"min_clarity"`       // (0,1]
	MergeGap        float64 `yaml:"merge_gap"`         // seconds
	FminNote        string  `yaml:"fmin_note"`
	FmaxNote        string  `yaml:"fmax_note"`
}

// TabConfig holds fretboard-mapping settings.
type TabConfig struct {
	MaxFret int `yaml:"max_fret"`
}

// SynthConfig holds tab-synthesis settings.
type SynthConfig struct {
	StepSeconds float64 `yaml:"step_seconds"`
	NoteSeconds float64 `yaml:"note_seconds"`
	Decay       float64 `yaml:"decay"`
	Gain        float64 `yaml:"gain"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabscribe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   1,
		},
		Detect: DetectConfig{
			MinNoteDuration: 0.1,
			MinClarity:      0.75,
			MergeGap:        0.05,
			FminNote:        "E2",
			FmaxNote:        "E6",
		},
		Tab: TabConfig{
			MaxFret: 15,
		},
		Synth: SynthConfig{
			StepSeconds: 0.14,
			NoteSeconds: 0.18,
			Decay:       0.996,
			Gain:        0.35,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in the path is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Detect.MinNoteDuration <= 0 {
		return fmt.Errorf("detect.min_note_duration must be > 0")
	}

	if c.Detect.MinClarity <= 0 || c.Detect.MinClarity > 1 {
		return fmt.Errorf("detect.min_clarity must be in (0, 1], got %v", c.Detect.MinClarity)
	}

	if c.Detect.MergeGap < 0 {
		return fmt.Errorf("detect.merge_gap must be >= 0")
	}

	fmin, err := music.NoteToHz(c.Detect.FminNote)
	if err != nil {
		return fmt.Errorf("detect.fmin_note: %w", err)
	}
	fmax, err := music.NoteToHz(c.Detect.FmaxNote)
	if err != nil {
		return fmt.Errorf("detect.fmax_note: %w", err)
	}
	if fmin >= fmax {
		return fmt.Errorf("detect.fmin_note %q must be below detect.fmax_note %q", c.Detect.FminNote, c.Detect.FmaxNote)
	}

	if c.Tab.MaxFret < 0 || c.Tab.MaxFret > 24 {
		return fmt.Errorf("tab.max_fret must be in 0..24, got %d", c.Tab.MaxFret)
	}

	if c.Synth.StepSeconds <= 0 || c.Synth.NoteSeconds <= 0 {
		return fmt.Errorf("synth.step_seconds and synth.note_seconds must be > 0")
	}

	if c.Synth.Decay <= 0 || c.Synth.Decay >= 1 {
		return fmt.Errorf("synth.decay must be in (0, 1), got %v", c.Synth.Decay)
	}

	if c.Synth.Gain <= 0 {
		return fmt.Errorf("synth.gain must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
