package config_test

import (
	"strings"
	"testing"

	"github.com/hushlabs/hearth/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
site_id: kitchen
audio:
  sample_rate: 16000
  frame_size: 320
hotword:
  sensitivity: 0.7
asr:
  backend: whisper
  model_path: /models/ggml-base.en.bin
nlu:
  intents:
    - name: searchWeatherForecast
      keywords: [weather, forecast]
      slots:
        - name: forecast_location
          entity: city
  entities:
    city: [paris, berlin]
history:
  backend: memory
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.SiteID != "kitchen" {
		t.Errorf("site_id = %q, want kitchen", cfg.SiteID)
	}
	if cfg.ASR.Backend != config.ASRWhisper {
		t.Errorf("asr backend = %q, want whisper", cfg.ASR.Backend)
	}
	if len(cfg.NLU.Intents) != 1 || cfg.NLU.Intents[0].Name != "searchWeatherForecast" {
		t.Errorf("intents = %+v", cfg.NLU.Intents)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("site_id: hall\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Backpressure != config.BackpressureDropOldest {
		t.Errorf("backpressure = %q, want drop_oldest", cfg.Audio.Backpressure)
	}
	if cfg.ASR.Backend != config.ASRMock {
		t.Errorf("asr backend = %q, want mock", cfg.ASR.Backend)
	}
	if cfg.Dialogue.SayTimeoutMs != 5000 || cfg.Dialogue.ClientTimeoutMs != 15000 {
		t.Errorf("dialogue timeouts = %+v", cfg.Dialogue)
	}
	if cfg.History.Backend != config.HistoryNone {
		t.Errorf("history backend = %q, want none", cfg.History.Backend)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("wake_word: hey hearth\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	t.Parallel()

	const bad = `
server:
  log_level: loud
audio:
  backpressure: reject
hotword:
  sensitivity: 1.5
asr:
  backend: whisper
nlu:
  intents:
    - name: searchWeatherForecast
      keywords: [weather]
    - name: searchWeatherForecast
      keywords: [forecast]
history:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected validation failures")
	}

	msg := err.Error()
	for _, want := range []string{
		"log_level",
		"backpressure",
		"sensitivity",
		"model_path",
		"duplicate intent",
		"postgres_dsn",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error does not mention %q: %v", want, err)
		}
	}
}
