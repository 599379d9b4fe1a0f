package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config directory and cwd at empty temp dirs and
// clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, key := range []string{
		ConfigPathEnv,
		"BMADFLOW_STATE_DIR",
		"BMADFLOW_PATHS_STATE_DIR",
		"BMADFLOW_LOG_LEVEL",
		"BMADFLOW_STRICT",
		"BMADFLOW_VALIDATION_STRICT",
		"BMADFLOW_OUTPUT_COLOR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	wd := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return wd
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ".bmad-core/agents", cfg.Paths.CoreAgentsDir)
	assert.Equal(t, "squads", cfg.Paths.SquadsDir)
	assert.Equal(t, "_bmad/_cfg/agent-manifest.csv", cfg.Paths.AgentManifest)
	assert.Equal(t, ".bmad-state/workflows", cfg.Paths.StateDir)
	assert.Equal(t, ".bmad-core/workflows", cfg.Paths.WorkflowsDir)

	assert.False(t, cfg.Validation.Strict)
	assert.Equal(t, 4, cfg.Validation.Concurrency)
	assert.Contains(t, cfg.Validation.AggregateArtifacts, "all_stories")
	assert.Contains(t, cfg.Validation.PlaceholderAgents, "various")

	assert.True(t, cfg.Output.Color)
	assert.True(t, cfg.Output.Markdown.Enabled)
	assert.Equal(t, "dark", cfg.Output.Markdown.Style)
	assert.Equal(t, 100, cfg.Output.Markdown.WordWrap)

	assert.True(t, cfg.Log.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestConfig_Layout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.SquadsDir = "teams"

	layout := cfg.Layout()

	assert.Equal(t, ".bmad-core/agents", layout.CoreAgentsDir)
	assert.Equal(t, "teams", layout.SquadsDir)
	assert.Equal(t, "_bmad/_cfg/agent-manifest.csv", layout.AgentManifest)
}

func TestConfig_LogDir(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".bmad-state", cfg.LogDir())

	cfg.Log.Dir = "/var/log/bmadflow"
	assert.Equal(t, "/var/log/bmadflow", cfg.LogDir())
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.v)
}

func TestLoader_LoadFromFile(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
paths:
  state_dir: /custom/state
  squads_dir: teams
validation:
  strict: true
  concurrency: 8
output:
  markdown:
    style: light
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := NewLoader().LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "/custom/state", cfg.Paths.StateDir)
	assert.Equal(t, "teams", cfg.Paths.SquadsDir)
	assert.True(t, cfg.Validation.Strict)
	assert.Equal(t, 8, cfg.Validation.Concurrency)
	assert.Equal(t, "light", cfg.Output.Markdown.Style)

	// Unset keys keep their defaults
	assert.Equal(t, ".bmad-core/agents", cfg.Paths.CoreAgentsDir)
	assert.Equal(t, 100, cfg.Output.Markdown.WordWrap)
	assert.True(t, cfg.Output.Markdown.Enabled)
}

func TestLoader_LoadFromFile_NonExistent(t *testing.T) {
	_, err := NewLoader().LoadFromFile("/nonexistent/path/config.yaml")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoader_LoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidContent := `
paths:
  - this is not valid yaml for this structure
    missing: colon here
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0644))

	_, err := NewLoader().LoadFromFile(configPath)

	assert.Error(t, err)
}

func TestLoader_LoadFromFile_WrongShape(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "shape.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("validation:\n  concurrency: [1, 2]\n"), 0644))

	_, err := NewLoader().LoadFromFile(configPath)

	assert.Error(t, err)
}

func TestLoader_LoadFromFile_DifferentExtension(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "config.json")

	jsonContent := `{
		"paths": {
			"state_dir": "/json/state"
		}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(jsonContent), 0644))

	cfg, err := NewLoader().LoadFromFile(configPath)

	require.NoError(t, err)
	assert.Equal(t, "/json/state", cfg.Paths.StateDir)
}

func TestLoader_Load_DefaultsWithNoConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_Load_LocalFiles(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "dot file",
			files: map[string]string{".bmadflow.yaml": "paths:\n  squads_dir: dot\n"},
			want:  "dot",
		},
		{
			name:  "plain file",
			files: map[string]string{"bmadflow.yaml": "paths:\n  squads_dir: plain\n"},
			want:  "plain",
		},
		{
			name: "dot file wins",
			files: map[string]string{
				".bmadflow.yaml": "paths:\n  squads_dir: dot\n",
				"bmadflow.yaml":  "paths:\n  squads_dir: plain\n",
			},
			want: "dot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wd := isolate(t)
			for name, content := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(wd, name), []byte(content), 0644))
			}

			cfg, err := NewLoader().Load()

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Paths.SquadsDir)
		})
	}
}

func TestLoader_Load_UserConfigDir(t *testing.T) {
	wd := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(wd, "bmadflow.yaml"), []byte("paths:\n  squads_dir: local\n"), 0644))

	userPath, err := DefaultConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0755))
	require.NoError(t, os.WriteFile(userPath, []byte("paths:\n  squads_dir: user\n"), 0644))

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "user", cfg.Paths.SquadsDir)
}

func TestLoader_Load_WithConfigPathEnv(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "custom-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: debug\n"), 0644))
	t.Setenv(ConfigPathEnv, configPath)

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_Load_ConfigPathEnvMissingFile(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := NewLoader().Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoader_Load_EnvOverridesTakePrecedence(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("paths:\n  state_dir: /from/file\n"), 0644))

	t.Setenv(ConfigPathEnv, configPath)
	t.Setenv("BMADFLOW_STATE_DIR", "/from/env")
	t.Setenv("BMADFLOW_OUTPUT_COLOR", "false")
	t.Setenv("BMADFLOW_STRICT", "true")

	cfg, err := NewLoader().Load()

	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Paths.StateDir)
	assert.False(t, cfg.Output.Color)
	assert.True(t, cfg.Validation.Strict)
}

func TestMustLoad_Success(t *testing.T) {
	isolate(t)

	cfg := MustLoad()
	assert.NotNil(t, cfg)
}

func TestMustLoad_Panics(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Panics(t, func() { MustLoad() })
}

func TestConfigDir(t *testing.T) {
	isolate(t)

	configDir, err := ConfigDir()
	require.NoError(t, err)
	assert.NotEmpty(t, configDir)
	assert.Contains(t, configDir, "bmadflow")
}

func TestDefaultConfigPath(t *testing.T) {
	isolate(t)

	configPath, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Contains(t, configPath, "bmadflow")
	assert.Equal(t, "config.yaml", filepath.Base(configPath))
}

func TestEnsureConfigDir(t *testing.T) {
	isolate(t)

	require.NoError(t, EnsureConfigDir())

	dir, err := ConfigDir()
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
