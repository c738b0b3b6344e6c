package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
//
// Log level, session and recognition settings can be applied to a running
// server; new sessions pick them up. Every other section needs a restart and
// is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SessionChanged is true if any session bound or stop word changed.
	SessionChanged bool

	// RecognitionChanged is true if phonetic correction or speech-to-text
	// tuning changed.
	RecognitionChanged bool

	// RestartRequired names the top-level sections that changed but cannot
	// be applied without a restart, in schema order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SessionChanged && !d.RecognitionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.SessionChanged = !sessionEqual(old.Session, new.Session)
	d.RecognitionChanged = old.Recognition != new.Recognition

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	sections := []struct {
		name    string
		changed bool
	}{
		{"server", !reflect.DeepEqual(oldServer, newServer)},
		{"menu", old.Menu != new.Menu},
		{"history", old.History != new.History},
		{"providers", !reflect.DeepEqual(old.Providers, new.Providers)},
		{"telemetry", old.Telemetry != new.Telemetry},
	}
	for _, s := range sections {
		if s.changed {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

func sessionEqual(a, b SessionConfig) bool {
	if !slices.Equal(a.StopWords, b.StopWords) {
		return false
	}
	a.StopWords, b.StopWords = nil, nil
	return reflect.DeepEqual(a, b)
}
