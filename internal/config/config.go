package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "BMADFLOW"

// ConfigPathEnv names an explicit config file and disables the search.
const ConfigPathEnv = "BMADFLOW_CONFIG_PATH"

// appName is the directory name used under the user config directory.
const appName = "bmadflow"

// configFileName is the file name looked up in the user config directory.
const configFileName = "config.yaml"

// localConfigFiles are searched in the working directory, in order.
var localConfigFiles = []string{".bmadflow.yaml", "bmadflow.yaml"}

// Loader handles Viper-based configuration loading.
//
// Use [NewLoader] to create a Loader, then [Loader.Load] for the standard
// search order or [Loader.LoadFromFile] for an explicit file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new [Loader] with a fresh Viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load loads configuration using the standard search order.
//
// Settings are merged from [DefaultConfig], the first config file found, and
// BMADFLOW_* environment variables, in increasing priority. A missing config
// file is not an error.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadFromFile loads configuration from a specific file path.
//
// The file format is inferred from the extension (YAML, JSON, TOML, ...).
// Environment overrides still apply.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.setDefaults()
	l.bindEnv()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every [DefaultConfig] value with Viper so that
// partial config files and environment overrides merge over them.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("paths.core_agents_dir", d.Paths.CoreAgentsDir)
	l.v.SetDefault("paths.squads_dir", d.Paths.SquadsDir)
	l.v.SetDefault("paths.agent_manifest", d.Paths.AgentManifest)
	l.v.SetDefault("paths.state_dir", d.Paths.StateDir)
	l.v.SetDefault("paths.workflows_dir", d.Paths.WorkflowsDir)

	l.v.SetDefault("validation.strict", d.Validation.Strict)
	l.v.SetDefault("validation.aggregate_artifacts", d.Validation.AggregateArtifacts)
	l.v.SetDefault("validation.placeholder_agents", d.Validation.PlaceholderAgents)
	l.v.SetDefault("validation.concurrency", d.Validation.Concurrency)

	l.v.SetDefault("output.color", d.Output.Color)
	l.v.SetDefault("output.markdown.enabled", d.Output.Markdown.Enabled)
	l.v.SetDefault("output.markdown.style", d.Output.Markdown.Style)
	l.v.SetDefault("output.markdown.word_wrap", d.Output.Markdown.WordWrap)

	l.v.SetDefault("log.enabled", d.Log.Enabled)
	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.dir", d.Log.Dir)
}

// bindEnv maps BMADFLOW_SECTION_KEY variables onto section.key settings,
// plus the short aliases documented for common overrides.
func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Short aliases
	_ = l.v.BindEnv("paths.state_dir", "BMADFLOW_STATE_DIR", "BMADFLOW_PATHS_STATE_DIR")
	_ = l.v.BindEnv("log.level", "BMADFLOW_LOG_LEVEL")
	_ = l.v.BindEnv("validation.strict", "BMADFLOW_STRICT", "BMADFLOW_VALIDATION_STRICT")
}

// findConfigFile returns the first config file in the search order, or ""
// when none exists.
func findConfigFile() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, nil
	}

	var candidates []string
	if userPath, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	candidates = append(candidates, localConfigFiles...)

	for _, p := range candidates {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// MustLoad loads configuration using [Loader.Load] and panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// ConfigDir returns the platform-standard bmadflow config directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultConfigPath returns the path of the user-level config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// EnsureConfigDir creates the user config directory if it does not exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}
