// Package config provides the configuration schema and loader for the Hearth
// voice engine.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ASRBackend selects the speech-recognition implementation.
type ASRBackend string

const (
	// ASRWhisper runs a local whisper.cpp model.
	ASRWhisper ASRBackend = "whisper"

	// ASRMock is the scripted backend for development and tests.
	ASRMock ASRBackend = "mock"
)

// IsValid reports whether b is a recognised ASR backend.
func (b ASRBackend) IsValid() bool {
	return b == ASRWhisper || b == ASRMock
}

// HistoryBackend selects where session audit records go.
type HistoryBackend string

const (
	HistoryNone     HistoryBackend = "none"
	HistoryMemory   HistoryBackend = "memory"
	HistoryPostgres HistoryBackend = "postgres"
)

// IsValid reports whether b is a recognised history backend.
func (b HistoryBackend) IsValid() bool {
	switch b {
	case HistoryNone, HistoryMemory, HistoryPostgres:
		return true
	}
	return false
}

// BackpressurePolicy selects the frame-queue overflow behaviour.
type BackpressurePolicy string

const (
	BackpressureBlock      BackpressurePolicy = "block"
	BackpressureDropOldest BackpressurePolicy = "drop_oldest"
)

// IsValid reports whether p is a recognised policy.
func (p BackpressurePolicy) IsValid() bool {
	return p == BackpressureBlock || p == BackpressureDropOldest
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	SiteID   string         `yaml:"site_id"`
	Audio    AudioConfig    `yaml:"audio"`
	Hotword  HotwordConfig  `yaml:"hotword"`
	ASR      ASRConfig      `yaml:"asr"`
	NLU      NLUConfig      `yaml:"nlu"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /healthz, /readyz, /metrics and
	// the websocket event bridge (e.g., ":8080"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the inbound PCM stream and queue behaviour.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per frame. Default: 320 (20 ms at
	// 16 kHz).
	FrameSize int `yaml:"frame_size"`

	// QueueCapacity bounds the frame queue. Default: 256.
	QueueCapacity int `yaml:"queue_capacity"`

	// Backpressure selects the overflow policy. Default: drop_oldest.
	Backpressure BackpressurePolicy `yaml:"backpressure"`
}

// HotwordConfig tunes the wake-word detector.
type HotwordConfig struct {
	// Sensitivity in [0, 1]; higher detects more readily. Default: 0.5.
	Sensitivity float64 `yaml:"sensitivity"`

	// RefractoryMs is the debounce window after a detection. Default: 1500.
	RefractoryMs int `yaml:"refractory_ms"`
}

// ASRConfig selects and tunes the recognition backend.
type ASRConfig struct {
	// Backend is "whisper" or "mock". Default: mock.
	Backend ASRBackend `yaml:"backend"`

	// ModelPath locates the whisper.cpp model file. Required for the whisper
	// backend.
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 recognition language. Default: en.
	Language string `yaml:"language"`

	// MaxUtteranceMs bounds one utterance. Default: 10000.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`

	// PartialPeriodMs is the minimum interval between partial-transcript
	// events. Default: 250.
	PartialPeriodMs int `yaml:"partial_period_ms"`
}

// NLUConfig declares the recognisable intents and entity gazetteers.
type NLUConfig struct {
	Intents  []IntentConfig      `yaml:"intents"`
	Entities map[string][]string `yaml:"entities"`

	// MaxIntentAlternatives bounds alternatives on a resolution. Default: 3.
	MaxIntentAlternatives int `yaml:"max_intent_alternatives"`

	// MaxSlotAlternatives bounds alternatives per slot. Default: 3.
	MaxSlotAlternatives int `yaml:"max_slot_alternatives"`
}

// IntentConfig declares one intent.
type IntentConfig struct {
	Name     string       `yaml:"name"`
	Keywords []string     `yaml:"keywords"`
	Slots    []SlotConfig `yaml:"slots"`
}

// SlotConfig declares one slot of an intent.
type SlotConfig struct {
	Name   string `yaml:"name"`
	Entity string `yaml:"entity"`
}

// DialogueConfig tunes the session state machine.
type DialogueConfig struct {
	// SayTimeoutMs bounds the Say acknowledgement handshake. Default: 5000.
	SayTimeoutMs int `yaml:"say_timeout_ms"`

	// ClientTimeoutMs bounds how long a session waits for the client after
	// delivering an intent. Default: 15000.
	ClientTimeoutMs int `yaml:"client_timeout_ms"`
}

// HistoryConfig selects the session audit store.
type HistoryConfig struct {
	// Backend is "none", "memory" or "postgres". Default: none.
	Backend HistoryBackend `yaml:"backend"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}
