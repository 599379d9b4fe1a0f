package validator

import (
	"fmt"
)

// Code is a stable identifier for a class of validation finding.
type Code string

// The finding taxonomy. Codes are stable and safe to match on in tooling.
const (
	CodeFileNotFound         Code = "FILE_NOT_FOUND"
	CodeSyntaxError          Code = "SYNTAX_ERROR"
	CodeMissingRequiredField Code = "MISSING_REQUIRED_FIELD"
	CodeInvalidSequence      Code = "INVALID_SEQUENCE"
	CodeAgentNotFound        Code = "AGENT_NOT_FOUND"
	CodeAgentAmbiguous       Code = "AGENT_AMBIGUOUS"
	CodeArtifactChainBroken  Code = "ARTIFACT_CHAIN_BROKEN"
	CodeCircularDependency   Code = "CIRCULAR_DEPENDENCY"
	CodeInvalidConditional   Code = "INVALID_CONDITIONAL"
	CodeMissingHandoff       Code = "MISSING_HANDOFF"
	CodeInvalidDiagram       Code = "INVALID_DIAGRAM"
)

// Severity distinguishes findings that block a workflow from those that don't.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// NoStep marks a finding that is not tied to a sequence entry.
const NoStep = -1

// Finding is one validation result.
type Finding struct {
	Code       Code     `json:"code"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`

	// Step is the zero-based sequence index, or [NoStep].
	Step int `json:"step"`

	// Field names the offending definition field, if any.
	Field string `json:"field,omitempty"`
}

// String formats the finding for terminal output.
func (f Finding) String() string {
	if f.Step == NoStep {
		return fmt.Sprintf("[%s] %s", f.Code, f.Message)
	}
	return fmt.Sprintf("[%s] step %d: %s", f.Code, f.Step, f.Message)
}

// Report is the outcome of validating one definition.
//
// Errors make Valid false. Warnings never do unless strict mode promoted
// them, in which case they appear in Errors and Warnings is empty.
type Report struct {
	Path        string    `json:"path,omitempty"`
	WorkflowID  string    `json:"workflow_id,omitempty"`
	Valid       bool      `json:"valid"`
	Errors      []Finding `json:"errors"`
	Warnings    []Finding `json:"warnings"`
	Suggestions []string  `json:"suggestions"`
}

func newReport(path string) *Report {
	return &Report{
		Path:        path,
		Errors:      []Finding{},
		Warnings:    []Finding{},
		Suggestions: []string{},
	}
}

func (r *Report) addError(code Code, step int, field, message, suggestion string) {
	r.Errors = append(r.Errors, Finding{
		Code:       code,
		Severity:   SeverityError,
		Message:    message,
		Suggestion: suggestion,
		Step:       step,
		Field:      field,
	})
}

func (r *Report) addWarning(code Code, step int, field, message, suggestion string) {
	r.Warnings = append(r.Warnings, Finding{
		Code:       code,
		Severity:   SeverityWarning,
		Message:    message,
		Suggestion: suggestion,
		Step:       step,
		Field:      field,
	})
}

// finish applies strict mode, collects suggestions and computes Valid.
func (r *Report) finish(strict bool) *Report {
	if strict && len(r.Warnings) > 0 {
		for _, w := range r.Warnings {
			w.Severity = SeverityError
			r.Errors = append(r.Errors, w)
		}
		r.Warnings = []Finding{}
	}

	seen := make(map[string]bool)
	for _, group := range [][]Finding{r.Errors, r.Warnings} {
		for _, f := range group {
			if f.Suggestion == "" || seen[f.Suggestion] {
				continue
			}
			seen[f.Suggestion] = true
			r.Suggestions = append(r.Suggestions, f.Suggestion)
		}
	}

	r.Valid = len(r.Errors) == 0
	return r
}

// HasCode reports whether any error or warning carries the given code.
func (r *Report) HasCode(code Code) bool {
	return len(r.FindingsWithCode(code)) > 0
}

// FindingsWithCode returns the errors and warnings carrying code, errors first.
func (r *Report) FindingsWithCode(code Code) []Finding {
	var out []Finding
	for _, group := range [][]Finding{r.Errors, r.Warnings} {
		for _, f := range group {
			if f.Code == code {
				out = append(out, f)
			}
		}
	}
	return out
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	state := "valid"
	if !r.Valid {
		state = "invalid"
	}
	return fmt.Sprintf("%s: %d error(s), %d warning(s)", state, len(r.Errors), len(r.Warnings))
}
