package state

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProgressBarWidth is the number of cells in the status report progress bar.
const ProgressBarWidth = 30

// ProgressBar renders p as a fixed-width bar such as "[#####.....] 50%".
func ProgressBar(p ProgressInfo) string {
	filled := 0
	if p.Total > 0 {
		filled = p.Done() * ProgressBarWidth / p.Total
	}
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("#", filled),
		strings.Repeat(".", ProgressBarWidth-filled),
		p.Percent())
}

// Label turns a snake_case status value into a display label ("In Progress").
func Label[T ~string](v T) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(v), "_", " "))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func contextLine(s *ExecutionState) string {
	if s.SquadName == "" {
		return string(s.TargetContext)
	}
	return fmt.Sprintf("%s (squad: %s)", s.TargetContext, s.SquadName)
}

func displayName(s *ExecutionState) string {
	if s.WorkflowName == "" {
		return s.WorkflowID
	}
	return fmt.Sprintf("%s (%s)", s.WorkflowName, s.WorkflowID)
}

// StatusReport renders a fixed-width table of every step with a progress
// bar. The output depends only on s.
func StatusReport(s *ExecutionState) string {
	p := Progress(s)
	var b strings.Builder

	fmt.Fprintf(&b, "Workflow:  %s\n", displayName(s))
	fmt.Fprintf(&b, "Instance:  %s\n", s.InstanceID)
	fmt.Fprintf(&b, "Context:   %s\n", contextLine(s))
	fmt.Fprintf(&b, "Status:    %s\n", Label(s.Status))
	fmt.Fprintf(&b, "Phase:     %s\n", s.CurrentPhase)
	fmt.Fprintf(&b, "Progress:  %s (%d/%d steps)\n", ProgressBar(p), p.Done(), p.Total)
	b.WriteString("\n")

	fmt.Fprintf(&b, "  %3s  %-12s %-4s %-16s %s\n", "#", "STATUS", "OPT", "AGENT", "PHASE")
	current := CurrentStep(s)
	for _, step := range s.Steps {
		marker := " "
		if current != nil && step.StepIndex == current.StepIndex {
			marker = ">"
		}
		opt := ""
		if step.Optional {
			opt = "yes"
		}
		agent := step.Agent
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(&b, "%s %3d  %-12s %-4s %-16s %s\n",
			marker, step.StepIndex, Label(step.Status), opt, agent, step.Phase)
	}

	if s.Status == InstanceAborted && s.AbortReason != "" {
		fmt.Fprintf(&b, "\nAborted: %s\n", s.AbortReason)
	}
	return b.String()
}

// HandoffSummary renders a markdown narrative of the instance for picking
// up the work in a new session. The output depends only on s.
func HandoffSummary(s *ExecutionState) string {
	p := Progress(s)
	var b strings.Builder

	fmt.Fprintf(&b, "# Workflow Handoff: %s\n\n", displayName(s))
	fmt.Fprintf(&b, "- **Instance:** `%s`\n", s.InstanceID)
	fmt.Fprintf(&b, "- **Status:** %s\n", Label(s.Status))
	fmt.Fprintf(&b, "- **Context:** %s\n", contextLine(s))
	fmt.Fprintf(&b, "- **Progress:** %d/%d steps (%d%%)\n", p.Done(), p.Total, p.Percent())
	fmt.Fprintf(&b, "- **Started:** %s\n", formatTime(s.StartedAt))
	fmt.Fprintf(&b, "- **Updated:** %s\n", formatTime(s.UpdatedAt))
	if s.DefinitionPath != "" {
		fmt.Fprintf(&b, "- **Definition:** `%s`\n", s.DefinitionPath)
	}

	b.WriteString("\n## Current Step\n\n")
	if current := CurrentStep(s); current != nil {
		fmt.Fprintf(&b, "Step %d: **%s**\n\n", current.StepIndex, current.Phase)
		if current.Agent != "" {
			fmt.Fprintf(&b, "- **Agent:** %s\n", current.Agent)
		}
		fmt.Fprintf(&b, "- **Status:** %s\n", Label(current.Status))
		if current.Condition != "" {
			fmt.Fprintf(&b, "- **Condition:** %s\n", current.Condition)
		}
		if current.SessionID != "" {
			fmt.Fprintf(&b, "- **Session:** %s\n", current.SessionID)
		}
		if current.Notes != "" {
			fmt.Fprintf(&b, "- **Notes:** %s\n", strings.TrimSpace(current.Notes))
		}
	} else if s.Status == InstanceAborted {
		b.WriteString("Workflow was aborted.")
		if s.AbortReason != "" {
			fmt.Fprintf(&b, " Reason: %s", s.AbortReason)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("All steps are finished.\n")
	}

	var done []StepRecord
	for _, step := range s.Steps {
		if step.Status.IsTerminal() {
			done = append(done, step)
		}
	}
	if len(done) > 0 {
		b.WriteString("\n## Completed Steps\n\n")
		for _, step := range done {
			box := "x"
			if step.Status == StepSkipped {
				box = "-"
			}
			fmt.Fprintf(&b, "- [%s] Step %d: %s", box, step.StepIndex, step.Phase)
			if step.Status == StepSkipped {
				b.WriteString(" (skipped)")
			}
			if len(step.ArtifactsCreated) > 0 {
				fmt.Fprintf(&b, " (artifacts: %s)", strings.Join(step.ArtifactsCreated, ", "))
			}
			b.WriteString("\n")
		}
	}

	if remaining := PendingSteps(s); len(remaining) > 0 {
		b.WriteString("\n## Remaining Steps\n\n")
		for _, step := range remaining {
			fmt.Fprintf(&b, "- [ ] Step %d: %s", step.StepIndex, step.Phase)
			if step.Optional {
				b.WriteString(" (optional)")
			}
			b.WriteString("\n")
		}
	}

	created, pending := ArtifactStatus(s)
	if len(created)+len(pending) > 0 {
		b.WriteString("\n## Artifacts\n\n")
		for _, a := range created {
			fmt.Fprintf(&b, "- [x] %s (step %d)", a.Name, a.CreatedByStep)
			if a.Path != "" {
				fmt.Fprintf(&b, " at `%s`", a.Path)
			}
			b.WriteString("\n")
		}
		for _, a := range pending {
			fmt.Fprintf(&b, "- [ ] %s (step %d)\n", a.Name, a.CreatedByStep)
		}
	}

	if len(s.Decisions) > 0 {
		b.WriteString("\n## Decisions\n\n")
		for _, d := range s.Decisions {
			fmt.Fprintf(&b, "- Step %d (%s): %s\n", d.StepIndex, formatTime(d.RecordedAt), d.Decision)
		}
	}

	if current := CurrentStep(s); current != nil {
		b.WriteString("\n## Next Action\n\n")
		verb := "Start"
		if current.Status == StepInProgress {
			verb = "Continue"
		}
		if current.Agent != "" {
			fmt.Fprintf(&b, "%s step %d as the **%s** agent: %s\n", verb, current.StepIndex, current.Agent, current.Action)
		} else {
			fmt.Fprintf(&b, "%s step %d: %s\n", verb, current.StepIndex, current.Action)
		}
	}

	return b.String()
}
