package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/sitenotes/internal/paths"
	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend          = "backend"
	cfgKeyDataDir          = "data_dir"
	cfgKeyBlobQuota        = "blob_quota_bytes"
	cfgKeyLogLevel         = "log_level"
	cfgKeyCatalogFile      = "catalog_file"
	cfgKeyThreshold        = "autosave.threshold"
	cfgKeyDebounce         = "autosave.debounce"
	cfgKeyInactivity       = "autosave.inactivity"
	cfgKeyFinalSaveTimeout = "final_save_timeout"

	defaultLogLevel = "warn"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# sitenotes configuration

backend: sqlite

# Data directory (optional; overridable by --data-dir and SITENOTES_DATA_DIR)
# data_dir:

# Total bytes of audio and image payloads; 0 means unlimited.
blob_quota_bytes: 0

# debug, info, warn, or error
log_level: warn

# YAML file listing the sites notes can be attached to.
# catalog_file:

autosave:
  threshold: 10s
  debounce: 500ms
  inactivity: 1s

final_save_timeout: 2s
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyBlobQuota, 0)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyThreshold, types.DefaultTypingThreshold)
	v.SetDefault(cfgKeyDebounce, types.DefaultDebounce)
	v.SetDefault(cfgKeyInactivity, types.DefaultInactivityWindow)
	v.SetDefault(cfgKeyFinalSaveTimeout, types.DefaultFinalSaveTimeout)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML if config.yaml is absent.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// configFromViper builds the store and autosave configuration.
func configFromViper(v *viper.Viper, dataDir string) types.Config {
	return types.Config{
		Backend:        v.GetString(cfgKeyBackend),
		DataDir:        dataDir,
		BlobQuotaBytes: v.GetInt64(cfgKeyBlobQuota),
		Autosave: types.AutosaveConfig{
			Threshold:  v.GetDuration(cfgKeyThreshold),
			Debounce:   v.GetDuration(cfgKeyDebounce),
			Inactivity: v.GetDuration(cfgKeyInactivity),
		},
		FinalSaveTimeout: v.GetDuration(cfgKeyFinalSaveTimeout),
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", errUsage, s)
	}
	return level, nil
}
