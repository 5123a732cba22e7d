package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path on top of [Defaults] and
// validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if _, err := cfg.Model.NoteRange(); err != nil {
		errs = append(errs, fmt.Errorf("model.note_min/note_max: %w", err))
	}
	if err := cfg.Model.TransitionParams().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if err := cfg.Model.EmissionParams().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	if cfg.MIDI.TicksPerQuarter == 0 {
		errs = append(errs, errors.New("midi.ticks_per_quarter must be positive"))
	}
	if cfg.MIDI.Channel > 15 {
		errs = append(errs, fmt.Errorf("midi.channel %d outside 0-15", cfg.MIDI.Channel))
	}
	if cfg.MIDI.Velocity == 0 || cfg.MIDI.Velocity > 127 {
		errs = append(errs, fmt.Errorf("midi.velocity %d outside 1-127", cfg.MIDI.Velocity))
	}

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if cfg.Server.ReloadInterval < 0 {
		errs = append(errs, errors.New("server.reload_interval must not be negative"))
	}

	return errors.Join(errs...)
}
