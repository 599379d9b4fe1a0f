package validator

import (
	"fmt"
	"regexp"
	"strings"

	"bmadflow/internal/agents"
	"bmadflow/internal/definition"
)

// checkRequiredFields reports missing required and recommended fields.
// It returns false when there is no workflow to check further.
func checkRequiredFields(doc *definition.Document, r *Report) bool {
	wf := doc.Workflow
	if wf == nil {
		r.addError(CodeMissingRequiredField, NoStep, "workflow",
			"missing top-level 'workflow' key",
			"Wrap the definition in a top-level 'workflow:' mapping")
		return false
	}

	if strings.TrimSpace(wf.ID) == "" {
		r.addError(CodeMissingRequiredField, NoStep, "id",
			"workflow id is required",
			"Add an 'id' such as 'greenfield-fullstack'")
	}
	if strings.TrimSpace(wf.Name) == "" {
		r.addError(CodeMissingRequiredField, NoStep, "name",
			"workflow name is required",
			"Add a human-readable 'name'")
	}
	if len(wf.Sequence) == 0 {
		r.addError(CodeMissingRequiredField, NoStep, "sequence",
			"workflow sequence must contain at least one step",
			"Add a 'sequence' list with at least one agent step")
	}

	if strings.TrimSpace(wf.Description) == "" {
		r.addWarning(CodeMissingRequiredField, NoStep, "description",
			"workflow has no description",
			"Add a 'description' explaining when to use this workflow")
	}
	if strings.TrimSpace(wf.Type) == "" {
		r.addWarning(CodeMissingRequiredField, NoStep, "type",
			"workflow has no type",
			"Add a 'type' such as 'greenfield' or 'brownfield'")
	}
	return true
}

func checkSequenceIntegrity(steps []definition.Step, r *Report) {
	for _, step := range steps {
		if step.IsControl() {
			continue
		}
		if step.Agent == "" {
			r.addWarning(CodeInvalidSequence, step.Index, "agent",
				"step has no agent",
				"Assign an 'agent' to every work step")
		}
		if !step.HasEffect() {
			r.addWarning(CodeInvalidSequence, step.Index, "creates",
				"step declares none of creates, updates, validates or action",
				"Declare what the step produces with 'creates', 'updates', 'validates' or 'action'")
		}
	}
}

// agentRef is a distinct agent name and the first step that references it.
type agentRef struct {
	name string
	step int
}

func collectAgents(steps []definition.Step) []agentRef {
	seen := make(map[string]bool)
	var refs []agentRef
	for _, step := range steps {
		for _, name := range step.Agents() {
			if seen[name] {
				continue
			}
			seen[name] = true
			refs = append(refs, agentRef{name: name, step: step.Index})
		}
	}
	return refs
}

func checkAgents(steps []definition.Step, opts Options, r *Report) {
	for _, ref := range collectAgents(steps) {
		prefix, bare := definition.SplitPrefix(ref.name)

		if !agents.IsValidName(bare) {
			r.addWarning(CodeAgentNotFound, ref.step, "agent",
				fmt.Sprintf("invalid agent name %q", ref.name),
				"Agent names must not contain path separators or '..'")
			continue
		}
		if opts.isPlaceholder(bare) {
			continue
		}

		switch {
		case opts.Squad != nil && opts.Core != nil:
			resolveTwoScopes(ref, prefix, bare, opts, r)
		case opts.Squad != nil:
			resolveOneScope(ref, bare, opts.Squad, r)
		case opts.Core != nil:
			resolveOneScope(ref, bare, opts.Core, r)
		}
	}
}

func resolveOneScope(ref agentRef, bare string, scope agents.Resolver, r *Report) {
	if !scope.Exists(bare) {
		r.addWarning(CodeAgentNotFound, ref.step, "agent",
			fmt.Sprintf("agent %q not found", bare),
			"Create the agent definition or fix the agent name")
	}
}

func resolveTwoScopes(ref agentRef, prefix, bare string, opts Options, r *Report) {
	switch prefix {
	case "core":
		if !opts.Core.Exists(bare) {
			r.addWarning(CodeAgentNotFound, ref.step, "agent",
				fmt.Sprintf("agent %q not found in core scope", bare),
				"Remove the 'core:' prefix or add the agent to the core agents")
		}
		return
	case "squad":
		if !opts.Squad.Exists(bare) {
			r.addWarning(CodeAgentNotFound, ref.step, "agent",
				fmt.Sprintf("agent %q not found in squad scope", bare),
				"Remove the 'squad:' prefix or add the agent to the squad")
		}
		return
	}

	inSquad := opts.Squad.Exists(bare)
	inCore := opts.Core.Exists(bare)
	switch {
	case inSquad && inCore:
		r.addWarning(CodeAgentAmbiguous, ref.step, "agent",
			fmt.Sprintf("agent %q exists in both squad and core scopes", bare),
			fmt.Sprintf("Use 'squad:%s' or 'core:%s' to pick one explicitly", bare, bare))
	case !inSquad && !inCore:
		r.addWarning(CodeAgentNotFound, ref.step, "agent",
			fmt.Sprintf("agent %q not found in squad or core scope", bare),
			"Create the agent definition or fix the agent name")
	}
}

func checkArtifactFlow(steps []definition.Step, opts Options, r *Report) {
	available := make(map[string]bool)
	for _, step := range steps {
		if step.Creates != "" {
			available[step.Creates] = true
		}
		for _, req := range step.Requires {
			if opts.isAggregate(req) || available[req] {
				continue
			}
			r.addWarning(CodeArtifactChainBroken, step.Index, "requires",
				fmt.Sprintf("requires %q but no earlier step creates it", req),
				fmt.Sprintf("Add a step that creates %q before step %d, or fix the artifact name", req, step.Index))
		}
	}
}

func checkCycles(steps []definition.Step, r *Report) {
	cycle := findCycle(buildDependencyGraph(steps))
	if cycle == nil {
		return
	}

	parts := make([]string, len(cycle))
	for i, idx := range cycle {
		parts[i] = fmt.Sprintf("step %d (%s)", idx, steps[idx].Phase())
	}
	r.addError(CodeCircularDependency, cycle[0], "requires",
		"circular dependency: "+strings.Join(parts, " -> "),
		"Break the cycle so each step only requires artifacts created by earlier steps")
}

func checkConditions(steps []definition.Step, r *Report) {
	for _, step := range steps {
		if step.HasCondition && strings.TrimSpace(step.Condition) == "" {
			r.addWarning(CodeInvalidConditional, step.Index, "condition",
				"condition is empty",
				"Give the condition a descriptive identifier such as 'po_checklist_issues'")
		}
	}
}

// countTransitions counts adjacent agent-bearing steps whose agent differs.
// Control markers carry no agent and do not break a run.
func countTransitions(steps []definition.Step) int {
	transitions := 0
	prev := ""
	for _, step := range steps {
		if step.Agent == "" {
			continue
		}
		if prev != "" && step.Agent != prev {
			transitions++
		}
		prev = step.Agent
	}
	return transitions
}

func checkHandoffs(wf *definition.Workflow, r *Report) {
	transitions := countTransitions(wf.Sequence)
	if transitions > 0 && !wf.HasHandoffPrompts() {
		r.addWarning(CodeMissingHandoff, NoStep, "handoff_prompts",
			fmt.Sprintf("workflow has %d agent transition(s) but no handoff_prompts", transitions),
			"Add 'handoff_prompts' describing what each agent hands to the next")
	}
}

var diagramKeyword = regexp.MustCompile(`\b(graph|flowchart)\b`)

var bracketPairs = []struct {
	open, close string
	name        string
}{
	{"[", "]", "square brackets"},
	{"(", ")", "parentheses"},
	{"{", "}", "braces"},
}

func checkDiagram(diagram string, r *Report) {
	if strings.TrimSpace(diagram) == "" {
		return
	}
	if !diagramKeyword.MatchString(diagram) {
		r.addWarning(CodeInvalidDiagram, NoStep, "flow_diagram",
			"flow_diagram has no graph or flowchart declaration",
			"Start the diagram with 'graph TD' or 'flowchart TD'")
	}
	for _, pair := range bracketPairs {
		opens := strings.Count(diagram, pair.open)
		closes := strings.Count(diagram, pair.close)
		if opens != closes {
			r.addWarning(CodeInvalidDiagram, NoStep, "flow_diagram",
				fmt.Sprintf("flow_diagram has unbalanced %s (%d open, %d close)", pair.name, opens, closes),
				"Check node labels in the diagram for missing brackets")
		}
	}
}
