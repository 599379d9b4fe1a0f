package state

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name string
		p    ProgressInfo
		want string
	}{
		{name: "empty sequence", p: ProgressInfo{}, want: "[" + strings.Repeat(".", 30) + "] 0%"},
		{name: "none done", p: ProgressInfo{Total: 4}, want: "[" + strings.Repeat(".", 30) + "] 0%"},
		{name: "half", p: ProgressInfo{Completed: 1, Skipped: 1, Total: 4}, want: "[" + strings.Repeat("#", 15) + strings.Repeat(".", 15) + "] 50%"},
		{name: "third", p: ProgressInfo{Completed: 1, Total: 3}, want: "[" + strings.Repeat("#", 10) + strings.Repeat(".", 20) + "] 33%"},
		{name: "all", p: ProgressInfo{Completed: 7, Total: 7}, want: "[" + strings.Repeat("#", 30) + "] 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressBar(tt.p))
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "In Progress", Label(StepInProgress))
	assert.Equal(t, "Completed", Label(InstanceCompleted))
	assert.Equal(t, "Pending", Label(ArtifactPending))
}

// midRun returns a greenfield instance with two steps done, one skipped and
// one in progress.
func midRun(t *testing.T) *ExecutionState {
	t.Helper()

	e := testEngine()
	s, err := e.CreateState(greenfield(), InstanceConfig{SquadName: "game-dev", TargetContext: "hybrid"})
	require.NoError(t, err)
	require.NoError(t, e.MarkStepCompleted(s, 0, []string{"project-brief.md"}))
	require.NoError(t, SetArtifactPath(s, "project-brief.md", "docs/brief.md"))
	require.NotNil(t, AdvanceStep(s))
	require.NoError(t, e.MarkStepCompleted(s, 1, []string{"prd.md"}))
	require.NotNil(t, AdvanceStep(s))
	require.NoError(t, e.MarkStepSkipped(s, 2))
	require.NotNil(t, AdvanceStep(s))
	require.NoError(t, e.StartStep(s, 3, "sess-42"))
	require.NoError(t, e.RecordDecision(s, 3, "keep REST API"))
	return s
}

func TestStatusReport(t *testing.T) {
	s := midRun(t)

	report := StatusReport(s)

	assert.Contains(t, report, "Workflow:  Greenfield Service (greenfield-service)\n")
	assert.Contains(t, report, "Instance:  greenfield-service-20261018-093000-abcd1234\n")
	assert.Contains(t, report, "Context:   hybrid (squad: game-dev)\n")
	assert.Contains(t, report, "Status:    Active\n")
	assert.Contains(t, report, "Phase:     po: updates:prd.md\n")
	assert.Contains(t, report, "Progress:  ["+strings.Repeat("#", 12)+strings.Repeat(".", 18)+"] 42% (3/7 steps)\n")
	assert.Contains(t, report, ">   3  In Progress  yes  po               po: updates:prd.md\n")
	assert.Contains(t, report, "    0  Completed         analyst          analyst: creates:project-brief.md\n")
	assert.Contains(t, report, "    6  Pending           -                project_complete\n")

	assert.Equal(t, report, StatusReport(s), "rendering is deterministic")
}

func TestStatusReport_Aborted(t *testing.T) {
	e := testEngine()
	s, err := e.CreateState(linearWorkflow(2), InstanceConfig{})
	require.NoError(t, err)
	require.NoError(t, e.Abort(s, "scope cut"))

	report := StatusReport(s)

	assert.Contains(t, report, "Status:    Aborted\n")
	assert.Contains(t, report, "Aborted: scope cut\n")
	assert.NotContains(t, report, ">")
}

func TestHandoffSummary(t *testing.T) {
	s := midRun(t)

	summary := HandoffSummary(s)

	assert.True(t, strings.HasPrefix(summary, "# Workflow Handoff: Greenfield Service (greenfield-service)\n"))
	assert.Contains(t, summary, "- **Progress:** 3/7 steps (42%)\n")
	assert.Contains(t, summary, "- **Started:** 2026-10-18T09:30:00Z\n")
	assert.Contains(t, summary, "Step 3: **po: updates:prd.md**\n")
	assert.Contains(t, summary, "- **Condition:** po_checklist_issues\n")
	assert.Contains(t, summary, "- **Session:** sess-42\n")
	assert.Contains(t, summary, "- [x] Step 0: analyst: creates:project-brief.md (artifacts: project-brief.md)\n")
	assert.Contains(t, summary, "- [-] Step 2: po: validates:all_artifacts (skipped)\n")
	assert.Contains(t, summary, "- [ ] Step 3: po: updates:prd.md (optional)\n")
	assert.Contains(t, summary, "- [x] project-brief.md (step 0) at `docs/brief.md`\n")
	assert.Contains(t, summary, "- [ ] architecture.md (step 4)\n")
	assert.Contains(t, summary, ": keep REST API\n")
	assert.Contains(t, summary, "Continue step 3 as the **po** agent: updates:prd.md\n")

	assert.Equal(t, summary, HandoffSummary(s), "rendering is deterministic")
}

func TestHandoffSummary_Finished(t *testing.T) {
	e := testEngine()
	s, err := e.CreateState(linearWorkflow(1), InstanceConfig{})
	require.NoError(t, err)
	require.NoError(t, e.MarkStepCompleted(s, 0, nil))
	AdvanceStep(s)

	summary := HandoffSummary(s)

	assert.Contains(t, summary, "All steps are finished.\n")
	assert.NotContains(t, summary, "## Next Action")
	assert.NotContains(t, summary, "## Remaining Steps")
}
