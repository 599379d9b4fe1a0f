package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bmadflow/internal/config"
	"bmadflow/internal/lifecycle"
	"bmadflow/internal/logging"
	"bmadflow/internal/output"
	"bmadflow/internal/state"
	"bmadflow/internal/store"
)

// testInstanceID is the id produced by the engine built in newTestApp for
// the greenfield fixture's first start.
const testInstanceID = "greenfield-20261018-090100-0badc0de"

// greenfieldYAML is a valid four-step definition whose third step is
// optional.
const greenfieldYAML = `
workflow:
  id: greenfield
  name: Greenfield
  description: test workflow
  type: greenfield
  handoff_prompts:
    analyst_to_pm: Brief is ready
    pm_to_po: PRD is ready
    po_to_architect: PRD validated
  sequence:
    - agent: analyst
      creates: brief.md
    - agent: pm
      creates: prd.md
      requires: brief.md
    - agent: po
      validates: prd.md
      optional: true
    - agent: architect
      creates: architecture.md
      requires: prd.md
`

// cyclicYAML has a circular artifact dependency.
const cyclicYAML = `
workflow:
  id: cyclic
  name: Cyclic
  description: cycle
  type: greenfield
  sequence:
    - agent: analyst
      creates: a.md
      requires: b.md
    - agent: analyst
      creates: b.md
      requires: a.md
`

// testEnv is an isolated project directory with an App whose output is
// captured in Out.
type testEnv struct {
	Dir string
	App *App
	Out *bytes.Buffer
}

// newTestApp builds an App rooted at a temp directory with a deterministic
// engine clock and instance suffix.
func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(store.StateDirEnv, "")

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.CoreAgentsDir = filepath.Join(dir, ".bmad-core", "agents")
	cfg.Paths.SquadsDir = filepath.Join(dir, "squads")
	cfg.Paths.AgentManifest = filepath.Join(dir, "_bmad", "_cfg", "agent-manifest.csv")
	cfg.Paths.StateDir = filepath.Join(dir, ".bmad-state", "workflows")
	cfg.Paths.WorkflowsDir = filepath.Join(dir, ".bmad-core", "workflows")

	clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	engine := state.New(
		state.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		state.WithSuffix(func() string { return "0badc0de" }),
	)

	st := store.NewStoreWithDir(dir, cfg.Paths.StateDir)
	out := &bytes.Buffer{}
	app := &App{
		Config:  cfg,
		Store:   st,
		Manager: lifecycle.NewManager(st, engine),
		Printer: output.NewPrinterWithWriter(out),
		Logger:  logging.Discard(),
	}
	return &testEnv{Dir: dir, App: app, Out: out}
}

// run executes args against the environment's App and returns the result.
// Output from the previous run is discarded.
func (e *testEnv) run(args ...string) ExecuteResult {
	e.Out.Reset()
	rootCmd := NewRootCommand(e.App)
	rootCmd.SetOut(e.Out)
	rootCmd.SetErr(e.Out)
	rootCmd.SetArgs(args)
	return execute(rootCmd)
}

// writeFile writes content to a path relative to the environment directory
// and returns the absolute path.
func (e *testEnv) writeFile(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.Dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeAgents creates empty agent files in the core agents directory.
func (e *testEnv) writeAgents(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		e.writeFile(t, filepath.Join(".bmad-core", "agents", name+".md"), "# "+name+"\n")
	}
}

// startGreenfield starts the greenfield fixture and returns its instance id.
func (e *testEnv) startGreenfield(t *testing.T) string {
	t.Helper()
	path := e.writeFile(t, "greenfield.yaml", greenfieldYAML)
	res := e.run("start", path)
	require.Equal(t, ExitOK, res.ExitCode, e.Out.String())
	return testInstanceID
}
