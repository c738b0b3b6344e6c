package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper"},
	"tts": {"elevenlabs"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr         = ":8080"
	DefaultHistoryPath        = "order_history.jsonl"
	DefaultMaxRounds          = 10
	DefaultMaxRetriesPerRound = 3
	DefaultTopN               = 3
	DefaultTranscribeTimeout  = 15 * time.Second
	DefaultServiceName        = "ordervox"
	DefaultMetricsPath        = "/metrics"
)

// DefaultStopWords end an order during confirmation when none are configured.
var DefaultStopWords = []string{"no", "stop", "nothing", "done", "that's all", "that is all"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, fills defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryFile
	}
	if cfg.History.Backend == HistoryFile && cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.Session.MaxRounds == 0 {
		cfg.Session.MaxRounds = DefaultMaxRounds
	}
	if cfg.Session.MaxRetriesPerRound == 0 {
		cfg.Session.MaxRetriesPerRound = DefaultMaxRetriesPerRound
	}
	if cfg.Session.TopN == 0 {
		cfg.Session.TopN = DefaultTopN
	}
	if len(cfg.Session.StopWords) == 0 {
		cfg.Session.StopWords = slices.Clone(DefaultStopWords)
	}
	if cfg.Recognition.TranscribeTimeout == 0 {
		cfg.Recognition.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.Telemetry.MetricsPath == "" {
		cfg.Telemetry.MetricsPath = DefaultMetricsPath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Menu
	if cfg.Menu.Path == "" {
		errs = append(errs, errors.New("menu.path is required"))
	}

	// History
	switch cfg.History.Backend {
	case "", HistoryMemory:
	case HistoryFile:
		if cfg.History.Path == "" {
			errs = append(errs, errors.New("history.path is required for the file backend"))
		}
	case HistoryPostgres:
		if cfg.History.PostgresDSN == "" {
			errs = append(errs, errors.New("history.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: memory, file, postgres", cfg.History.Backend))
	}
	if cfg.History.Backend == HistoryMemory {
		slog.Warn("history.backend is memory; recommendations restart from an empty history on every launch")
	}

	// Session
	s := cfg.Session
	if s.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("session.max_rounds %d must not be negative", s.MaxRounds))
	}
	if s.MaxRetriesPerRound < -1 {
		errs = append(errs, fmt.Errorf("session.max_retries_per_round %d is invalid; use -1 to disable retries", s.MaxRetriesPerRound))
	}
	if s.TopN < 0 {
		errs = append(errs, fmt.Errorf("session.top_n %d must not be negative", s.TopN))
	}
	if s.ListenTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.listen_timeout %s must not be negative", s.ListenTimeout))
	}
	if s.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.confirm_timeout %s must not be negative", s.ConfirmTimeout))
	}
	for i, w := range s.StopWords {
		if w == "" {
			errs = append(errs, fmt.Errorf("session.stop_words[%d] is empty", i))
		}
	}

	// Recognition
	r := cfg.Recognition
	if r.PhoneticThreshold < 0 || r.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("recognition.phonetic_threshold %.2f is out of range [0, 1]", r.PhoneticThreshold))
	}
	if r.FuzzyThreshold < 0 || r.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("recognition.fuzzy_threshold %.2f is out of range [0, 1]", r.FuzzyThreshold))
	}
	if r.TranscribeTimeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.transcribe_timeout %s must not be negative", r.TranscribeTimeout))
	}

	// Providers
	p := cfg.Providers
	validateProviderName("stt", p.STT.Name)
	validateProviderName("tts", p.TTS.Name)
	errs = append(errs, validateFallbacks("stt", p.STT, p.STTFallbacks)...)
	errs = append(errs, validateFallbacks("tts", p.TTS, p.TTSFallbacks)...)
	if p.TTS.Name != "" && p.Voice.VoiceID == "" {
		errs = append(errs, errors.New("providers.voice.voice_id is required when providers.tts is configured"))
	}
	if p.Voice.SpeedFactor != 0 && (p.Voice.SpeedFactor < 0.5 || p.Voice.SpeedFactor > 2.0) {
		errs = append(errs, fmt.Errorf("providers.voice.speed_factor %.2f is out of range [0.5, 2.0]", p.Voice.SpeedFactor))
	}
	if cb := p.CircuitBreaker; cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}
	if p.STT.Name == "" {
		slog.Warn("no STT provider configured; the gateway will accept transcript frames only")
	}

	return errors.Join(errs...)
}

// validateFallbacks checks fallback entries of one kind.
func validateFallbacks(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	if primary.Name == "" && len(fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks requires providers.%s", kind, kind))
	}
	for i, fb := range fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s_fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
