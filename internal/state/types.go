// Package state tracks the execution of one workflow instance.
//
// An [ExecutionState] is created once from a validated definition and then
// driven one operation at a time by an external caller, usually across many
// short-lived sessions. All transitions here are in-memory; persistence is
// left to the store package so the rules stay testable without I/O.
//
// Step state machine:
//
//	pending -> in_progress -> completed
//	pending -> completed
//	pending -> skipped        (optional steps only)
//
// Instance state machine:
//
//	active -> completed       (no pending step remains)
//	active -> aborted         (external command)
//
// Key types:
//   - [ExecutionState] is the persisted record of one instance
//   - [StepRecord] is the runtime view of one sequence entry
//   - [ArtifactRecord] tracks one named deliverable
//   - [Engine] applies transitions with an injectable clock
package state

import (
	"errors"
	"time"

	"bmadflow/internal/agents"
)

// Sentinel errors for state transitions. Callers are driving the state
// machine incorrectly when they see one of these.
var (
	// ErrInvalidInstanceID indicates the workflow id cannot form a safe
	// instance id. No state is created.
	ErrInvalidInstanceID = errors.New("invalid instance id")

	// ErrInvalidStepIndex indicates a step index outside the sequence.
	ErrInvalidStepIndex = errors.New("invalid step index")

	// ErrStepNotOptional indicates an attempt to skip a required step.
	ErrStepNotOptional = errors.New("step is not optional")

	// ErrInvalidTransition indicates a step transition the state machine
	// does not allow, such as completing a skipped step.
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrInstanceFinished indicates a mutation of a completed or aborted
	// instance.
	ErrInstanceFinished = errors.New("workflow instance is finished")

	// ErrArtifactNotFound indicates an artifact name the instance does not track.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// InstanceStatus is the lifecycle status of an instance.
type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "active"
	InstanceCompleted InstanceStatus = "completed"
	InstanceAborted   InstanceStatus = "aborted"
)

// IsTerminal reports whether no further transitions are possible.
func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceCompleted || s == InstanceAborted
}

// StepStatus is the status of one step record.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

// IsTerminal reports whether the step is completed or skipped.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepSkipped
}

// ArtifactState is the materialization status of an artifact.
type ArtifactState string

const (
	ArtifactPending ArtifactState = "pending"
	ArtifactCreated ArtifactState = "created"
)

// Display values for current_phase once the instance is finished.
const (
	PhaseComplete = "complete"
	PhaseAborted  = "aborted"
)

// ExecutionState is the mutable record of one workflow instance.
type ExecutionState struct {
	WorkflowID     string         `yaml:"workflow_id" json:"workflow_id"`
	WorkflowName   string         `yaml:"workflow_name,omitempty" json:"workflow_name,omitempty"`
	DefinitionPath string         `yaml:"definition_path,omitempty" json:"definition_path,omitempty"`
	InstanceID     string         `yaml:"instance_id" json:"instance_id"`
	TargetContext  agents.Context `yaml:"target_context" json:"target_context"`
	SquadName      string         `yaml:"squad_name,omitempty" json:"squad_name,omitempty"`

	StartedAt time.Time `yaml:"started_at" json:"started_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	Status           InstanceStatus `yaml:"status" json:"status"`
	CurrentPhase     string         `yaml:"current_phase" json:"current_phase"`
	CurrentStepIndex int            `yaml:"current_step_index" json:"current_step_index"`

	Steps     []StepRecord     `yaml:"steps" json:"steps"`
	Artifacts []ArtifactRecord `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Decisions []Decision       `yaml:"decisions,omitempty" json:"decisions,omitempty"`

	AbortReason string `yaml:"abort_reason,omitempty" json:"abort_reason,omitempty"`
}

// StepRecord is the runtime view of one sequence entry.
type StepRecord struct {
	StepIndex int        `yaml:"step_index" json:"step_index"`
	Phase     string     `yaml:"phase" json:"phase"`
	Agent     string     `yaml:"agent,omitempty" json:"agent,omitempty"`
	Action    string     `yaml:"action,omitempty" json:"action,omitempty"`
	Status    StepStatus `yaml:"status" json:"status"`

	// Optional is set for steps declared optional or carrying a condition.
	Optional  bool   `yaml:"optional" json:"optional"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	StartedAt        *time.Time `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt      *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	ArtifactsCreated []string   `yaml:"artifacts_created,omitempty" json:"artifacts_created,omitempty"`
	Notes            string     `yaml:"notes,omitempty" json:"notes,omitempty"`
	SessionID        string     `yaml:"session_id,omitempty" json:"session_id,omitempty"`
}

// ArtifactRecord tracks one artifact named by a step's creates field.
type ArtifactRecord struct {
	Name          string `yaml:"name" json:"name"`
	CreatedByStep int    `yaml:"created_by_step" json:"created_by_step"`

	// Path is empty until the artifact is materialized.
	Path   string        `yaml:"path,omitempty" json:"path,omitempty"`
	Status ArtifactState `yaml:"status" json:"status"`
}

// Decision is one entry of the append-only decision log.
type Decision struct {
	StepIndex  int       `yaml:"step_index" json:"step_index"`
	Decision   string    `yaml:"decision" json:"decision"`
	RecordedAt time.Time `yaml:"recorded_at" json:"recorded_at"`
}

// InstanceConfig carries the caller's choices for a new instance.
type InstanceConfig struct {
	// TargetContext selects the agent resolution scopes. Empty means core.
	TargetContext agents.Context

	// SquadName is required in practice for squad and hybrid contexts.
	SquadName string

	// DefinitionPath is recorded for display and re-validation.
	DefinitionPath string
}
