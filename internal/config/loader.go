package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.SiteID == "" {
		cfg.SiteID = "default"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = 320
	}
	if cfg.Audio.QueueCapacity == 0 {
		cfg.Audio.QueueCapacity = 256
	}
	if cfg.Audio.Backpressure == "" {
		cfg.Audio.Backpressure = BackpressureDropOldest
	}
	if cfg.Hotword.Sensitivity == 0 {
		cfg.Hotword.Sensitivity = 0.5
	}
	if cfg.Hotword.RefractoryMs == 0 {
		cfg.Hotword.RefractoryMs = 1500
	}
	if cfg.ASR.Backend == "" {
		cfg.ASR.Backend = ASRMock
	}
	if cfg.ASR.Language == "" {
		cfg.ASR.Language = "en"
	}
	if cfg.ASR.MaxUtteranceMs == 0 {
		cfg.ASR.MaxUtteranceMs = 10_000
	}
	if cfg.ASR.PartialPeriodMs == 0 {
		cfg.ASR.PartialPeriodMs = 250
	}
	if cfg.NLU.MaxIntentAlternatives == 0 {
		cfg.NLU.MaxIntentAlternatives = 3
	}
	if cfg.NLU.MaxSlotAlternatives == 0 {
		cfg.NLU.MaxSlotAlternatives = 3
	}
	if cfg.Dialogue.SayTimeoutMs == 0 {
		cfg.Dialogue.SayTimeoutMs = 5_000
	}
	if cfg.Dialogue.ClientTimeoutMs == 0 {
		cfg.Dialogue.ClientTimeoutMs = 15_000
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryNone
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be positive, got %d", cfg.Audio.FrameSize))
	}
	if cfg.Audio.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_capacity must be positive, got %d", cfg.Audio.QueueCapacity))
	}
	if !cfg.Audio.Backpressure.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backpressure %q is invalid; valid values: block, drop_oldest", cfg.Audio.Backpressure))
	}
	if cfg.Hotword.Sensitivity < 0 || cfg.Hotword.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("hotword.sensitivity must be in [0, 1], got %g", cfg.Hotword.Sensitivity))
	}
	if !cfg.ASR.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("asr.backend %q is invalid; valid values: whisper, mock", cfg.ASR.Backend))
	}
	if cfg.ASR.Backend == ASRWhisper && cfg.ASR.ModelPath == "" {
		errs = append(errs, errors.New("asr.model_path is required for the whisper backend"))
	}
	if !cfg.History.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: none, memory, postgres", cfg.History.Backend))
	}
	if cfg.History.Backend == HistoryPostgres && cfg.History.PostgresDSN == "" {
		errs = append(errs, errors.New("history.postgres_dsn is required for the postgres backend"))
	}

	seen := make(map[string]bool, len(cfg.NLU.Intents))
	for i, intent := range cfg.NLU.Intents {
		if intent.Name == "" {
			errs = append(errs, fmt.Errorf("nlu.intents[%d] has no name", i))
			continue
		}
		if seen[intent.Name] {
			errs = append(errs, fmt.Errorf("nlu.intents: duplicate intent %q", intent.Name))
		}
		seen[intent.Name] = true
		if len(intent.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("nlu.intents[%s] has no keywords", intent.Name))
		}
		for _, slot := range intent.Slots {
			if slot.Name == "" || slot.Entity == "" {
				errs = append(errs, fmt.Errorf("nlu.intents[%s] has a slot missing name or entity", intent.Name))
			}
		}
	}

	return errors.Join(errs...)
}
