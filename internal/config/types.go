// Package config provides configuration loading and management for bmadflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults follow the standard BMAD project layout so the
// tool works out of the box from a project root.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [PathsConfig] locates agents, squads, workflows and state files
//   - [ValidationConfig] tunes the definition validator
//
// Configuration priority (highest to lowest):
//  1. Environment variables (BMADFLOW_ prefix)
//  2. Config file specified by BMADFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/bmadflow/config.yaml
//     - macOS: ~/Library/Application Support/bmadflow/config.yaml
//     - Windows: %APPDATA%\bmadflow\config.yaml
//  4. ./.bmadflow.yaml
//  5. ./bmadflow.yaml
//  6. [DefaultConfig] defaults
package config

import (
	"path/filepath"

	"bmadflow/internal/agents"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Paths locates project files. Relative paths are resolved against the
	// working directory.
	Paths PathsConfig `mapstructure:"paths"`

	// Validation tunes the definition validator.
	Validation ValidationConfig `mapstructure:"validation"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log configures the diagnostic log file.
	Log LogConfig `mapstructure:"log"`
}

// PathsConfig locates the files bmadflow reads and writes.
type PathsConfig struct {
	// CoreAgentsDir holds core agent definitions.
	// Default: ".bmad-core/agents"
	CoreAgentsDir string `mapstructure:"core_agents_dir"`

	// SquadsDir holds one directory per squad, each with an agents/ folder
	// and an optional squad.yaml manifest.
	// Default: "squads"
	SquadsDir string `mapstructure:"squads_dir"`

	// AgentManifest is the BMAD agent manifest CSV. Optional.
	// Default: "_bmad/_cfg/agent-manifest.csv"
	AgentManifest string `mapstructure:"agent_manifest"`

	// StateDir holds one YAML file per workflow instance.
	// Default: ".bmad-state/workflows"
	// Can be overridden with BMADFLOW_STATE_DIR environment variable.
	StateDir string `mapstructure:"state_dir"`

	// WorkflowsDir is scanned by validate-all when no directory is given.
	// Default: ".bmad-core/workflows"
	WorkflowsDir string `mapstructure:"workflows_dir"`
}

// ValidationConfig tunes the definition validator.
type ValidationConfig struct {
	// Strict promotes every warning to an error.
	// Default: false
	Strict bool `mapstructure:"strict"`

	// AggregateArtifacts are requires values treated as wildcards.
	// Default: ["*", "all", "any", "all_stories", "all_artifacts"]
	AggregateArtifacts []string `mapstructure:"aggregate_artifacts"`

	// PlaceholderAgents are agent values that are never resolved.
	// Default: ["various", "all", "any"]
	PlaceholderAgents []string `mapstructure:"placeholder_agents"`

	// Concurrency bounds batch validation.
	// Default: 4
	Concurrency int `mapstructure:"concurrency"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// Color enables styled output. Disabled output is plain ASCII.
	// Default: true
	Color bool `mapstructure:"color"`

	// Markdown contains markdown rendering configuration.
	Markdown MarkdownConfig `mapstructure:"markdown"`
}

// MarkdownConfig contains configuration for markdown rendering in terminal output.
//
// When enabled, handoff summaries are rendered with proper formatting:
// headers, bold text, lists and code spans.
type MarkdownConfig struct {
	// Enabled controls whether markdown rendering is active.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Style is the glamour theme to use: "dark", "light", "dracula", "tokyo-night".
	// Avoid "auto" as it can cause detection delays on some terminals.
	// Default: "dark"
	Style string `mapstructure:"style"`

	// WordWrap is the column width for text wrapping.
	// Default: 100
	WordWrap int `mapstructure:"word_wrap"`
}

// LogConfig configures the diagnostic log file.
type LogConfig struct {
	// Enabled turns the log file on.
	// Default: true
	Enabled bool `mapstructure:"enabled"`

	// Level is one of debug, info, warn, error.
	// Default: "info"
	Level string `mapstructure:"level"`

	// Dir holds bmadflow.log. Empty means the parent of the state directory.
	Dir string `mapstructure:"dir"`
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// The defaults match the standard BMAD project layout and work out of the
// box without any configuration file.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			CoreAgentsDir: ".bmad-core/agents",
			SquadsDir:     "squads",
			AgentManifest: "_bmad/_cfg/agent-manifest.csv",
			StateDir:      ".bmad-state/workflows",
			WorkflowsDir:  ".bmad-core/workflows",
		},
		Validation: ValidationConfig{
			Strict:             false,
			AggregateArtifacts: []string{"*", "all", "any", "all_stories", "all_artifacts"},
			PlaceholderAgents:  []string{"various", "all", "any"},
			Concurrency:        4,
		},
		Output: OutputConfig{
			Color: true,
			Markdown: MarkdownConfig{
				Enabled:  true,
				Style:    "dark",
				WordWrap: 100,
			},
		},
		Log: LogConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// Layout returns the agent layout described by the paths section.
func (c *Config) Layout() agents.Layout {
	return agents.Layout{
		CoreAgentsDir: c.Paths.CoreAgentsDir,
		SquadsDir:     c.Paths.SquadsDir,
		AgentManifest: c.Paths.AgentManifest,
	}
}

// LogDir returns the configured log directory, defaulting to the parent of
// the state directory.
func (c *Config) LogDir() string {
	if c.Log.Dir != "" {
		return c.Log.Dir
	}
	return filepath.Dir(c.Paths.StateDir)
}
