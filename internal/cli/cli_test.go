package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bmadflow/internal/agents"
	"bmadflow/internal/logging"
	"bmadflow/internal/state"
	"bmadflow/internal/validator"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure)
	assert.Equal(t, "exit status 1", err.Error())

	cause := errors.New("bad step")
	wrapped := &ExitError{Code: ExitUsage, Err: cause}
	assert.Equal(t, "exit status 2: bad step", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	code, ok := IsExitError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ExitUsage, code)

	_, ok = IsExitError(cause)
	assert.False(t, ok)
	_, ok = IsExitError(nil)
	assert.False(t, ok)
}

func TestParseStepIndex(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "12", want: 12},
		{in: "-1", wantErr: true},
		{in: "two", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStepIndex(tt.in)
			if tt.wantErr {
				code, ok := IsExitError(err)
				require.True(t, ok)
				assert.Equal(t, ExitUsage, code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	env := newTestApp(t)
	valid := env.writeFile(t, "valid.yaml", greenfieldYAML)
	cyclic := env.writeFile(t, "cyclic.yaml", cyclicYAML)

	res := env.run("validate", valid)
	assert.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), "✓ "+valid+": valid: 0 error(s), 0 warning(s)")

	res = env.run("validate", valid, cyclic)
	assert.Equal(t, ExitFailure, res.ExitCode)
	out := env.Out.String()
	assert.Contains(t, out, "✗ "+cyclic+": invalid")
	assert.Contains(t, out, "[CIRCULAR_DEPENDENCY]")
	assert.Less(t, strings.Index(out, valid), strings.Index(out, cyclic), "reports follow argument order")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	env := newTestApp(t)

	res := env.run("validate", filepath.Join(env.Dir, "missing.yaml"))

	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Contains(t, env.Out.String(), "[FILE_NOT_FOUND]")
}

func TestValidateCommand_JSON(t *testing.T) {
	env := newTestApp(t)
	cyclic := env.writeFile(t, "cyclic.yaml", cyclicYAML)

	res := env.run("validate", "--json", cyclic)
	assert.Equal(t, ExitFailure, res.ExitCode)

	var reports []validator.Report
	require.NoError(t, json.Unmarshal(env.Out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Valid)
	assert.Equal(t, "cyclic", reports[0].WorkflowID)
	assert.Equal(t, validator.CodeCircularDependency, reports[0].Errors[0].Code)
}

func TestValidateCommand_AgentResolution(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "valid.yaml", greenfieldYAML)
	env.writeAgents(t, "analyst", "pm", "po")

	res := env.run("validate", path)
	assert.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), `agent "architect" not found`)

	res = env.run("validate", "--strict", path)
	assert.Equal(t, ExitFailure, res.ExitCode)

	env.writeAgents(t, "architect")
	res = env.run("validate", "--strict", path)
	assert.Equal(t, ExitOK, res.ExitCode, env.Out.String())
}

func TestValidateCommand_SquadScope(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "valid.yaml", greenfieldYAML)
	env.writeAgents(t, "analyst", "pm", "po", "architect")
	env.writeFile(t, filepath.Join("squads", "web", "agents", "pm.md"), "# pm\n")

	res := env.run("validate", "--squad", "web", path)

	assert.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), "[AGENT_AMBIGUOUS]")
}

func TestValidateCommand_BadContext(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "valid.yaml", greenfieldYAML)

	res := env.run("validate", "--context", "galaxy", path)

	assert.Equal(t, ExitUsage, res.ExitCode)
	assert.Contains(t, env.Out.String(), "invalid target context")
}

func TestValidateCommand_NoArgsIsUsageError(t *testing.T) {
	env := newTestApp(t)

	res := env.run("validate")

	assert.Equal(t, ExitUsage, res.ExitCode)
	assert.Contains(t, env.Out.String(), "Run 'bmadflow --help' for usage.")
}

func TestValidateAllCommand(t *testing.T) {
	env := newTestApp(t)
	env.writeFile(t, filepath.Join(".bmad-core", "workflows", "a.yaml"), greenfieldYAML)
	env.writeFile(t, filepath.Join(".bmad-core", "workflows", "nested", "b.yml"), cyclicYAML)
	env.writeFile(t, filepath.Join(".bmad-core", "workflows", "README.md"), "not a workflow")

	res := env.run("validate-all")

	assert.Equal(t, ExitFailure, res.ExitCode)
	out := env.Out.String()
	assert.Contains(t, out, "1 of 2 definitions valid")
	assert.NotContains(t, out, "README.md")
}

func TestValidateAllCommand_EmptyDir(t *testing.T) {
	env := newTestApp(t)
	dir := filepath.Join(env.Dir, "empty")
	env.writeFile(t, filepath.Join("empty", "notes.txt"), "x")

	res := env.run("validate-all", dir)

	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Contains(t, env.Out.String(), "no workflow definitions found")
}

func TestStartCommand(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	out := env.Out.String()
	assert.Contains(t, out, "✓ Started "+id)
	assert.Contains(t, out, "Step 0  analyst  creates:brief.md  (Pending)")
	assert.True(t, env.App.Store.Exists(id))

	st, err := env.App.Store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, agents.ContextCore, st.TargetContext)
	assert.Len(t, st.Steps, 4)
}

func TestStartCommand_SquadContext(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "greenfield.yaml", greenfieldYAML)

	res := env.run("start", "--squad", "web", "--context", "hybrid", path)
	require.Equal(t, ExitOK, res.ExitCode, env.Out.String())

	st, err := env.App.Store.Load(testInstanceID)
	require.NoError(t, err)
	assert.Equal(t, agents.ContextHybrid, st.TargetContext)
	assert.Equal(t, "web", st.SquadName)
}

func TestStartCommand_InvalidDefinition(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "cyclic.yaml", cyclicYAML)

	res := env.run("start", path)
	assert.Equal(t, ExitFailure, res.ExitCode)
	out := env.Out.String()
	assert.Contains(t, out, "[CIRCULAR_DEPENDENCY]")
	assert.Contains(t, out, "use --force to override")

	summaries, err := env.App.Store.List()
	require.NoError(t, err)
	assert.Empty(t, summaries)

	res = env.run("start", "--force", path)
	assert.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), "Started cyclic-")
}

func TestInstanceLifecycle(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	res := env.run("begin", id, "0", "--session", "s-1")
	require.Equal(t, ExitOK, res.ExitCode, env.Out.String())
	assert.Contains(t, env.Out.String(), "(In Progress)")

	res = env.run("complete", id, "0", "--artifact", "brief.md=docs/brief.md")
	require.Equal(t, ExitOK, res.ExitCode, env.Out.String())
	assert.Contains(t, env.Out.String(), "Step 1  pm  creates:prd.md  (Pending)")

	res = env.run("complete", id, "1")
	require.Equal(t, ExitOK, res.ExitCode)

	res = env.run("skip", id, "2")
	require.Equal(t, ExitOK, res.ExitCode, env.Out.String())
	assert.Contains(t, env.Out.String(), "Step 3  architect")

	res = env.run("decide", id, "3", "use", "hexagonal", "architecture")
	require.Equal(t, ExitOK, res.ExitCode)

	res = env.run("status", id)
	require.Equal(t, ExitOK, res.ExitCode)
	out := env.Out.String()
	assert.Contains(t, out, "Progress:  [")
	assert.Contains(t, out, "(3/4 steps)")
	assert.Contains(t, out, ">   3  Pending")

	res = env.run("complete", id, "3")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), id+" is completed")

	st, err := env.App.Store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, state.InstanceCompleted, st.Status)
	assert.Equal(t, "docs/brief.md", st.Artifacts[0].Path)
	require.Len(t, st.Decisions, 1)
	assert.Equal(t, "use hexagonal architecture", st.Decisions[0].Decision)
	assert.Equal(t, "s-1", st.Steps[0].SessionID)
}

func TestInstanceCommands_Rejections(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{name: "skip required step", args: []string{"skip", id, "0"}, code: ExitFailure, msg: "not optional"},
		{name: "step out of range", args: []string{"begin", id, "9"}, code: ExitFailure, msg: "step"},
		{name: "begin ahead of open step", args: []string{"begin", id, "3"}, code: ExitFailure, msg: "step 0 is pending"},
		{name: "step not a number", args: []string{"complete", id, "x"}, code: ExitUsage, msg: "non-negative integer"},
		{name: "unknown instance", args: []string{"status", "nope"}, code: ExitFailure, msg: "not found"},
		{name: "unsafe instance id", args: []string{"status", "../etc"}, code: ExitFailure, msg: "instance"},
		{name: "empty decision", args: []string{"decide", id, "0", " "}, code: ExitFailure, msg: "decision text is required"},
		{name: "missing args", args: []string{"complete", id}, code: ExitUsage, msg: "accepts 2 arg(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(tt.args...)
			assert.Equal(t, tt.code, res.ExitCode)
			assert.Contains(t, env.Out.String(), tt.msg)
		})
	}

	st, err := env.App.Store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, state.StepPending, st.Steps[0].Status)
	assert.Empty(t, st.Decisions)
}

func TestNextCommand(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	res := env.run("next", id)

	assert.Equal(t, ExitOK, res.ExitCode)
	assert.Equal(t, "Step 0  analyst  creates:brief.md  (Pending)\n", env.Out.String())
}

func TestAbortCommand(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	res := env.run("abort", id, "--reason", "scope cut")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), id+" aborted")

	res = env.run("abort", id)
	assert.Equal(t, ExitFailure, res.ExitCode)

	res = env.run("status", id)
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), "Aborted: scope cut")
}

func TestHandoffCommand(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	res := env.run("handoff", id)

	require.Equal(t, ExitOK, res.ExitCode)
	out := env.Out.String()
	assert.True(t, strings.HasPrefix(out, "# Workflow Handoff: Greenfield (greenfield)"))
	assert.Contains(t, out, "Start step 0 as the **analyst** agent: creates:brief.md")
}

func TestStatusCommand_JSON(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)

	res := env.run("status", "--json", id)
	require.Equal(t, ExitOK, res.ExitCode)

	var st state.ExecutionState
	require.NoError(t, json.Unmarshal(env.Out.Bytes(), &st))
	assert.Equal(t, id, st.InstanceID)
	assert.Len(t, st.Steps, 4)
}

func TestListCommand(t *testing.T) {
	env := newTestApp(t)

	res := env.run("list")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), "No workflow instances.")

	id := env.startGreenfield(t)
	res = env.run("list")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), id)

	require.Equal(t, ExitOK, env.run("abort", id).ExitCode)

	res = env.run("list")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.NotContains(t, env.Out.String(), id)

	res = env.run("list", "--all")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Contains(t, env.Out.String(), id)
}

func TestListCommand_BrokenFile(t *testing.T) {
	env := newTestApp(t)
	id := env.startGreenfield(t)
	env.writeFile(t, filepath.Join(".bmad-state", "workflows", "broken.yaml"), "steps: [")

	res := env.run("list")

	require.Equal(t, ExitOK, res.ExitCode)
	out := env.Out.String()
	assert.Contains(t, out, id)
	assert.Contains(t, out, "some state files could not be read")
}

func TestAgentsPathsCommand(t *testing.T) {
	env := newTestApp(t)
	layout := env.App.Config.Layout()

	res := env.run("agents", "paths")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Equal(t, layout.CoreAgentsDir+"\n", env.Out.String())

	res = env.run("agents", "paths", "--squad", "web")
	require.Equal(t, ExitOK, res.ExitCode)
	assert.Equal(t, layout.SquadAgentsDir("web")+"\n"+layout.CoreAgentsDir+"\n", env.Out.String())
}

func TestNoColorFlag(t *testing.T) {
	env := newTestApp(t)
	path := env.writeFile(t, "valid.yaml", greenfieldYAML)

	res := env.run("--no-color", "validate", path)

	assert.Equal(t, ExitOK, res.ExitCode)
	assert.NotContains(t, env.Out.String(), "\x1b[")
}

func TestRunWithConfig(t *testing.T) {
	env := newTestApp(t)
	cfg := env.App.Config
	cfg.Log.Dir = filepath.Join(env.Dir, "logs")
	cfg.Log.Level = "debug"
	cfg.Output.Color = false
	path := env.writeFile(t, "greenfield.yaml", greenfieldYAML)

	res := RunWithConfig(cfg, []string{"start", path})
	require.Equal(t, ExitOK, res.ExitCode)
	assert.NoError(t, res.Err)

	res = RunWithConfig(cfg, []string{"no-such-command"})
	assert.Equal(t, ExitUsage, res.ExitCode)

	res = RunWithConfig(cfg, []string{"status", "missing-instance"})
	assert.Equal(t, ExitFailure, res.ExitCode)

	logData, err := os.ReadFile(filepath.Join(cfg.Log.Dir, logging.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "workflow started")
	assert.Contains(t, string(logData), "op=start")
}
