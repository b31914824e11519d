package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level and
// vocabulary apply live; everything listed in RestartRequired needs a
// restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	VocabularyChanged bool
	NewVocabulary     []string

	// RestartRequired names top-level sections whose changes are ignored
	// until restart.
	RestartRequired []string
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Transcription.Vocabulary, new.Transcription.Vocabulary) {
		d.VocabularyChanged = true
		d.NewVocabulary = slices.Clone(new.Transcription.Vocabulary)
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	oldTr, newTr := old.Transcription, new.Transcription
	oldTr.Vocabulary, newTr.Vocabulary = nil, nil

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"synthesis", old.Synthesis, new.Synthesis},
		{"transcription", oldTr, newTr},
		{"usage", old.Usage, new.Usage},
		{"events", old.Events, new.Events},
		{"circuit_breaker", old.CircuitBreaker, new.CircuitBreaker},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
