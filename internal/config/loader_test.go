package config_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/ordervox/internal/config"
)

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{ListenAddr: ":1234", LogLevel: config.LogWarn},
		History: config.HistoryConfig{Backend: config.HistoryMemory},
		Session: config.SessionConfig{MaxRounds: 2, MaxRetriesPerRound: -1, TopN: 1, StopWords: []string{"enough"}},
		Recognition: config.RecognitionConfig{
			TranscribeTimeout: time.Second,
		},
	}
	config.ApplyDefaults(cfg)

	if cfg.Server.ListenAddr != ":1234" || cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("server overwritten: %+v", cfg.Server)
	}
	if cfg.History.Path != "" {
		t.Errorf("memory backend should not get a history path, got %q", cfg.History.Path)
	}
	if cfg.Session.MaxRounds != 2 || cfg.Session.MaxRetriesPerRound != -1 || cfg.Session.TopN != 1 {
		t.Errorf("session overwritten: %+v", cfg.Session)
	}
	if !slices.Equal(cfg.Session.StopWords, []string{"enough"}) {
		t.Errorf("stop_words overwritten: %q", cfg.Session.StopWords)
	}
	if cfg.Recognition.TranscribeTimeout != time.Second {
		t.Errorf("transcribe_timeout overwritten: %s", cfg.Recognition.TranscribeTimeout)
	}
}

func TestApplyDefaults_StopWordsAreCopied(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Session.StopWords[0] = "mutated"
	if config.DefaultStopWords[0] == "mutated" {
		t.Fatal("ApplyDefaults must not share the DefaultStopWords backing array")
	}
}

func TestValidate_ValidBackends(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
	}{
		{"memory", "menu: {path: m}\nhistory: {backend: memory}\n"},
		{"file", "menu: {path: m}\nhistory: {backend: file, path: /var/lib/ordervox/history.jsonl}\n"},
		{"postgres", "menu: {path: m}\nhistory: {backend: postgres, postgres_dsn: postgres://localhost/ordervox}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFromReader(strings.NewReader(tt.yaml)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_UnknownProviderNameIsOnlyAWarning(t *testing.T) {
	t.Parallel()
	yaml := "menu: {path: m}\nproviders: {stt: {name: deepgram}}\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should not fail validation: %v", err)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil || !strings.Contains(err.Error(), "menu.path") {
		t.Fatalf("empty document should fail on menu.path, got %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper"`)
	}
	if !slices.Contains(config.ValidProviderNames["tts"], "elevenlabs") {
		t.Error(`ValidProviderNames["tts"] should contain "elevenlabs"`)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config must stay valid: %v", err)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.TTS.Name != "elevenlabs" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
}
