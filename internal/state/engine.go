package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bmadflow/internal/agents"
	"bmadflow/internal/definition"
)

// instanceTimeLayout is the timestamp segment of an instance id.
const instanceTimeLayout = "20060102-150405"

// Engine applies state transitions. It holds no instance state; only the
// clock and the instance id suffix source are configurable.
type Engine struct {
	now    func() time.Time
	suffix func() string
}

// Option configures an [Engine].
type Option func(*Engine)

// WithClock sets the time source used for timestamps and instance ids.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSuffix sets the random suffix source used for instance ids.
func WithSuffix(suffix func() string) Option {
	return func(e *Engine) {
		e.suffix = suffix
	}
}

// New creates an [Engine] using the wall clock and a uuid-derived suffix
// unless overridden by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:    func() time.Time { return time.Now().UTC() },
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// randomSuffix returns the first 8 hex digits of a random uuid.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// defaultEngine backs the package-level functions.
var defaultEngine = New()

// CreateState builds a new active instance from wf.
//
// The workflow id must be non-empty and usable as a path element; otherwise
// [ErrInvalidInstanceID] is returned and no state is built. Each sequence
// entry becomes one pending [StepRecord]. Steps declared optional or carrying
// a condition are marked optional. One pending [ArtifactRecord] is seeded per
// distinct creates value, tagged with the first step that creates it.
func (e *Engine) CreateState(wf *definition.Workflow, cfg InstanceConfig) (*ExecutionState, error) {
	if wf == nil {
		return nil, fmt.Errorf("%w: no workflow definition", ErrInvalidInstanceID)
	}
	if !definition.IsSafeID(wf.ID) {
		return nil, fmt.Errorf("%w: workflow id %q is empty or not path-safe", ErrInvalidInstanceID, wf.ID)
	}

	ctx := cfg.TargetContext
	if ctx == "" {
		ctx = agents.ContextCore
	}
	if !ctx.IsValid() {
		return nil, fmt.Errorf("invalid target context %q", ctx)
	}

	now := e.now()
	s := &ExecutionState{
		WorkflowID:     wf.ID,
		WorkflowName:   wf.Name,
		DefinitionPath: cfg.DefinitionPath,
		InstanceID:     fmt.Sprintf("%s-%s-%s", wf.ID, now.Format(instanceTimeLayout), e.suffix()),
		TargetContext:  ctx,
		SquadName:      cfg.SquadName,
		StartedAt:      now,
		UpdatedAt:      now,
		Status:         InstanceActive,
	}

	seen := make(map[string]bool)
	for i, step := range wf.Sequence {
		s.Steps = append(s.Steps, StepRecord{
			StepIndex: i,
			Phase:     step.Phase(),
			Agent:     step.Agent,
			Action:    step.EffectDescription(),
			Status:    StepPending,
			Optional:  step.Optional || step.HasCondition,
			Condition: step.Condition,
			Notes:     step.Notes,
		})
		if step.Creates != "" && !seen[step.Creates] {
			seen[step.Creates] = true
			s.Artifacts = append(s.Artifacts, ArtifactRecord{
				Name:          step.Creates,
				CreatedByStep: i,
				Status:        ArtifactPending,
			})
		}
	}

	if len(s.Steps) == 0 {
		s.Status = InstanceCompleted
		s.CurrentPhase = PhaseComplete
		return s, nil
	}
	s.CurrentPhase = s.Steps[0].Phase
	return s, nil
}

// StartStep moves a pending step to in_progress and makes it current.
//
// Every earlier step must already be completed or skipped; a step cannot be
// started ahead of work that is still open. Starting a step that is already
// in progress records the new session id and keeps the original start time,
// which is how work resumes in a new session.
func (e *Engine) StartStep(s *ExecutionState, index int, sessionID string) error {
	step, err := s.mutableStep(index)
	if err != nil {
		return err
	}
	if open := s.firstOpenStep(); open >= 0 && open < index {
		return fmt.Errorf("%w: cannot start step %d: step %d is %s", ErrInvalidTransition, index, open, s.Steps[open].Status)
	}

	switch step.Status {
	case StepPending:
		now := e.now()
		step.Status = StepInProgress
		step.StartedAt = &now
	case StepInProgress:
	default:
		return fmt.Errorf("%w: cannot start step %d: it is %s", ErrInvalidTransition, index, step.Status)
	}

	if sessionID != "" {
		step.SessionID = sessionID
	}
	s.CurrentStepIndex = index
	s.CurrentPhase = step.Phase
	return nil
}

// MarkStepCompleted completes the step at index and records the artifacts it
// produced. Tracked artifacts with a matching name flip to created; names the
// instance does not track are recorded on the step only.
func (e *Engine) MarkStepCompleted(s *ExecutionState, index int, artifactNames []string) error {
	step, err := s.mutableStep(index)
	if err != nil {
		return err
	}
	if step.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot complete step %d: it is already %s", ErrInvalidTransition, index, step.Status)
	}

	now := e.now()
	step.Status = StepCompleted
	step.CompletedAt = &now
	if step.StartedAt == nil {
		started := now
		step.StartedAt = &started
	}

	for _, name := range artifactNames {
		name = strings.TrimSpace(name)
		if name == "" || containsString(step.ArtifactsCreated, name) {
			continue
		}
		step.ArtifactsCreated = append(step.ArtifactsCreated, name)
		for i := range s.Artifacts {
			if s.Artifacts[i].Name == name {
				s.Artifacts[i].Status = ArtifactCreated
			}
		}
	}
	return nil
}

// MarkStepSkipped skips an optional pending step. The step is left untouched
// when it is not optional.
func (e *Engine) MarkStepSkipped(s *ExecutionState, index int) error {
	step, err := s.mutableStep(index)
	if err != nil {
		return err
	}
	if !step.Optional {
		return fmt.Errorf("%w: step %d (%s)", ErrStepNotOptional, index, step.Phase)
	}
	if step.Status != StepPending {
		return fmt.Errorf("%w: cannot skip step %d: it is %s", ErrInvalidTransition, index, step.Status)
	}

	now := e.now()
	step.Status = StepSkipped
	step.CompletedAt = &now
	return nil
}

// RecordDecision appends a decision to the log of an active instance.
func (e *Engine) RecordDecision(s *ExecutionState, index int, decision string) error {
	if _, err := s.mutableStep(index); err != nil {
		return err
	}
	decision = strings.TrimSpace(decision)
	if decision == "" {
		return errors.New("decision text is required")
	}
	s.Decisions = append(s.Decisions, Decision{
		StepIndex:  index,
		Decision:   decision,
		RecordedAt: e.now(),
	})
	return nil
}

// Abort ends an active instance. Steps keep their current status.
func (e *Engine) Abort(s *ExecutionState, reason string) error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: instance %s is %s", ErrInstanceFinished, s.InstanceID, s.Status)
	}
	s.Status = InstanceAborted
	s.CurrentPhase = PhaseAborted
	s.AbortReason = strings.TrimSpace(reason)
	return nil
}

// mutableStep returns the step at index of an active instance.
func (s *ExecutionState) mutableStep(index int) (*StepRecord, error) {
	if index < 0 || index >= len(s.Steps) {
		return nil, fmt.Errorf("%w: %d (instance has %d steps)", ErrInvalidStepIndex, index, len(s.Steps))
	}
	if s.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: instance %s is %s", ErrInstanceFinished, s.InstanceID, s.Status)
	}
	return &s.Steps[index], nil
}

// firstOpenStep returns the index of the first step that is neither
// completed nor skipped, or -1 when every step is terminal.
func (s *ExecutionState) firstOpenStep() int {
	for i := range s.Steps {
		if !s.Steps[i].Status.IsTerminal() {
			return i
		}
	}
	return -1
}

// AdvanceStep moves to the first pending step after the current one and
// returns it. When none remains the instance is completed and nil is
// returned. The scan is forward-only; steps before the current index are
// never revisited. Finished instances are left unchanged.
func AdvanceStep(s *ExecutionState) *StepRecord {
	if s.Status.IsTerminal() {
		return nil
	}
	for i := s.CurrentStepIndex + 1; i < len(s.Steps); i++ {
		if s.Steps[i].Status == StepPending {
			s.CurrentStepIndex = i
			s.CurrentPhase = s.Steps[i].Phase
			return &s.Steps[i]
		}
	}
	s.Status = InstanceCompleted
	s.CurrentPhase = PhaseComplete
	return nil
}

// SetArtifactPath records where a tracked artifact was materialized.
func SetArtifactPath(s *ExecutionState, name, path string) error {
	for i := range s.Artifacts {
		if s.Artifacts[i].Name == name {
			s.Artifacts[i].Path = path
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
}

// CreateState builds a new instance using the default engine.
func CreateState(wf *definition.Workflow, cfg InstanceConfig) (*ExecutionState, error) {
	return defaultEngine.CreateState(wf, cfg)
}

// StartStep starts a step using the default engine.
func StartStep(s *ExecutionState, index int, sessionID string) error {
	return defaultEngine.StartStep(s, index, sessionID)
}

// MarkStepCompleted completes a step using the default engine.
func MarkStepCompleted(s *ExecutionState, index int, artifactNames []string) error {
	return defaultEngine.MarkStepCompleted(s, index, artifactNames)
}

// MarkStepSkipped skips a step using the default engine.
func MarkStepSkipped(s *ExecutionState, index int) error {
	return defaultEngine.MarkStepSkipped(s, index)
}

// RecordDecision appends a decision using the default engine.
func RecordDecision(s *ExecutionState, index int, decision string) error {
	return defaultEngine.RecordDecision(s, index, decision)
}

// Abort aborts an instance using the default engine.
func Abort(s *ExecutionState, reason string) error {
	return defaultEngine.Abort(s, reason)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
