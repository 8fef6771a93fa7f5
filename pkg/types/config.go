package types

import (
	"errors"
	"time"
)

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Autosave defaults.
const (
	DefaultTypingThreshold  = 10 * time.Second
	DefaultDebounce         = 500 * time.Millisecond
	DefaultInactivityWindow = time.Second
	DefaultFinalSaveTimeout = 2 * time.Second
)

// Config holds backend selection and tuning for a sitenotes session.
type Config struct {
	Backend        string `json:"backend" yaml:"backend"`
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	BlobQuotaBytes int64  `json:"blob_quota_bytes" yaml:"blob_quota_bytes"` // 0 means unlimited.

	Autosave AutosaveConfig `json:"autosave" yaml:"autosave"`

	// FinalSaveTimeout bounds the save made when leaving an editor.
	FinalSaveTimeout time.Duration `json:"final_save_timeout" yaml:"final_save_timeout"`
}

// AutosaveConfig tunes the editor autosave state machine.
type AutosaveConfig struct {
	Threshold  time.Duration `json:"threshold" yaml:"threshold"`
	Debounce   time.Duration `json:"debounce" yaml:"debounce"`
	Inactivity time.Duration `json:"inactivity" yaml:"inactivity"`
}

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrQuotaInvalid     = errors.New("blob quota must not be negative")
	ErrAutosaveInvalid  = errors.New("autosave durations must not be negative")
	ErrFinalSaveInvalid = errors.New("final save timeout must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.BlobQuotaBytes < 0 {
		return ErrQuotaInvalid
	}
	a := c.Autosave
	if a.Threshold < 0 || a.Debounce < 0 || a.Inactivity < 0 {
		return ErrAutosaveInvalid
	}
	if c.FinalSaveTimeout < 0 {
		return ErrFinalSaveInvalid
	}
	return nil
}

// WithDefaults returns a copy with zero durations replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendSQLite
	}
	if c.Autosave.Threshold == 0 {
		c.Autosave.Threshold = DefaultTypingThreshold
	}
	if c.Autosave.Debounce == 0 {
		c.Autosave.Debounce = DefaultDebounce
	}
	if c.Autosave.Inactivity == 0 {
		c.Autosave.Inactivity = DefaultInactivityWindow
	}
	if c.FinalSaveTimeout == 0 {
		c.FinalSaveTimeout = DefaultFinalSaveTimeout
	}
	return c
}
