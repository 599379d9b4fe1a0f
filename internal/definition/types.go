// Package definition holds the typed model of a BMAD workflow definition.
//
// A workflow definition is a YAML document whose root key is "workflow". It
// declares an ordered sequence of steps, each owned by an agent and each
// creating, updating or validating a named artifact. [Parse] is the single
// fallible step that turns raw YAML into a [Document]; everything downstream
// (the validator, the state engine) works on typed data only.
//
// Key types:
//   - [Document] is the parse result, with a nil Workflow when the root key is absent
//   - [Workflow] is the definition itself
//   - [Step] is one sequence entry, either a control marker or a work step
//
// Example definition:
//
//	workflow:
//	  id: greenfield-service
//	  name: Greenfield Service
//	  sequence:
//	    - agent: analyst
//	      creates: project-brief.md
//	    - agent: pm
//	      creates: prd.md
//	      requires: project-brief.md
//	    - workflow_end:
//	        action: project_complete
package definition

import (
	"strings"
)

// ControlMarker identifies a sequence entry that steers the workflow instead
// of doing work.
type ControlMarker string

const (
	// MarkerRepeatDevelopmentCycle loops the development phase for every story.
	MarkerRepeatDevelopmentCycle ControlMarker = "repeat_development_cycle"

	// MarkerWorkflowEnd terminates the sequence.
	MarkerWorkflowEnd ControlMarker = "workflow_end"
)

// IsValid reports whether m is one of the known control markers.
func (m ControlMarker) IsValid() bool {
	switch m {
	case MarkerRepeatDevelopmentCycle, MarkerWorkflowEnd:
		return true
	}
	return false
}

// Agent context prefixes that pin a name to one resolution scope.
const (
	PrefixCore  = "core:"
	PrefixSquad = "squad:"
)

// Document is the result of parsing a definition file.
type Document struct {
	// Path is the file the document was read from, empty for in-memory input.
	Path string

	// Workflow is nil when the document has no "workflow" root key.
	Workflow *Workflow
}

// Workflow is a parsed workflow definition. It is never mutated after parsing.
type Workflow struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Type        string `yaml:"type,omitempty"`
	Sequence    []Step `yaml:"sequence"`

	// HandoffPrompts is nil when the key is absent.
	HandoffPrompts map[string]any `yaml:"handoff_prompts,omitempty"`

	FlowDiagram string `yaml:"flow_diagram,omitempty"`
}

// HasHandoffPrompts reports whether a handoff_prompts section was declared.
func (w *Workflow) HasHandoffPrompts() bool {
	return w.HandoffPrompts != nil
}

// Step is one entry of a workflow sequence.
//
// Exactly one of two shapes is populated: a control step has a non-empty
// Marker; a work step has an Agent and one of the effect fields.
type Step struct {
	// Index is the zero-based position in the sequence.
	Index int

	// Line is the source line of the entry, zero when unknown.
	Line int

	Marker ControlMarker

	Agent     string
	Creates   string
	Updates   string
	Validates string
	Action    string
	Requires  []string

	// HasCondition is set when the condition key was present, even if blank.
	HasCondition bool
	Condition    string

	Optional      bool
	Notes         string
	OptionalSteps []string
	Repeats       string
}

// IsControl reports whether the step is a control marker.
func (s Step) IsControl() bool {
	return s.Marker != ""
}

// HasEffect reports whether the step declares creates, updates, validates or action.
func (s Step) HasEffect() bool {
	return s.Creates != "" || s.Updates != "" || s.Validates != "" || s.Action != ""
}

// EffectDescription returns the display form of the step's declared effect.
//
// Priority: creates, updates, validates, action, then the marker name.
func (s Step) EffectDescription() string {
	switch {
	case s.Creates != "":
		return "creates:" + s.Creates
	case s.Updates != "":
		return "updates:" + s.Updates
	case s.Validates != "":
		return "validates:" + s.Validates
	case s.Action != "":
		return s.Action
	case s.Marker != "":
		return string(s.Marker)
	}
	return ""
}

// Phase returns the display label "<agent>: <effect>", or just the effect
// when no agent is declared.
func (s Step) Phase() string {
	effect := s.EffectDescription()
	if s.Agent == "" {
		return effect
	}
	return s.Agent + ": " + effect
}

// Agents splits a compound agent field ("analyst/pm") into its names.
// Context prefixes are preserved; see [SplitPrefix].
func (s Step) Agents() []string {
	if strings.TrimSpace(s.Agent) == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(s.Agent, "/") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

// SplitPrefix strips an explicit "core:" or "squad:" context prefix.
// The returned prefix is empty when none was given.
func SplitPrefix(name string) (prefix, bare string) {
	for _, p := range []string{PrefixCore, PrefixSquad} {
		if strings.HasPrefix(name, p) {
			return strings.TrimSuffix(p, ":"), strings.TrimPrefix(name, p)
		}
	}
	return "", name
}

// IsSafeID reports whether id can be used as a single path element.
func IsSafeID(id string) bool {
	if strings.TrimSpace(id) == "" || id == "." || id == ".." {
		return false
	}
	if strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00:")
}
