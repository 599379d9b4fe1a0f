// Package lifecycle drives a workflow instance one operation per invocation.
//
// There is no background process: every command loads the persisted state,
// applies exactly one engine operation and saves the result. The [Manager]
// owns that load, apply, save loop so the CLI stays a thin layer.
//
// Key concepts:
//   - State is read and written through [StateStore]
//   - Transitions are delegated to a [state.Engine]
//   - Rejected operations are never saved
//   - Progress can be observed via [ProgressCallback]
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"bmadflow/internal/definition"
	"bmadflow/internal/state"
	"bmadflow/internal/validator"
)

// ErrInvalidDefinition indicates a definition with validation errors was
// refused at start.
var ErrInvalidDefinition = errors.New("workflow definition is invalid")

// Operation names one mutating lifecycle call in logs and callbacks.
type Operation string

const (
	OpStart    Operation = "start"
	OpBegin    Operation = "begin"
	OpComplete Operation = "complete"
	OpSkip     Operation = "skip"
	OpAdvance  Operation = "advance"
	OpDecide   Operation = "decide"
	OpAbort    Operation = "abort"
)

// StateStore is the interface for persisting execution state.
//
// Load returns an error wrapping the store's not-found sentinel when the
// instance does not exist. Save refreshes updated_at and writes atomically.
// The [store.Store] type implements this interface.
type StateStore interface {
	Load(instanceID string) (*state.ExecutionState, error)
	Save(st *state.ExecutionState) error
}

// ProgressCallback is invoked after each successful, persisted operation.
//
// stepIndex is the step the operation targeted, or -1 for instance-level
// operations such as start and abort.
type ProgressCallback func(op Operation, st *state.ExecutionState, stepIndex int)

// Artifact names an artifact produced by a step, with an optional path.
type Artifact struct {
	Name string
	Path string
}

// ParseArtifact parses "name" or "name=path".
func ParseArtifact(s string) Artifact {
	name, path, _ := strings.Cut(s, "=")
	return Artifact{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)}
}

// StartOptions configures [Manager.Start].
type StartOptions struct {
	// Validation is applied to the definition before any state is created.
	Validation validator.Options

	// Instance carries the target context and squad.
	Instance state.InstanceConfig

	// Force creates the instance even when validation reports errors.
	Force bool
}

// Manager applies lifecycle operations to persisted instances.
//
// Use [NewManager] to create one. A logger and progress callback are
// optional.
type Manager struct {
	store            StateStore
	engine           *state.Engine
	logger           *slog.Logger
	progressCallback ProgressCallback
}

// NewManager creates a Manager. A nil engine uses [state.New] defaults.
func NewManager(store StateStore, engine *state.Engine) *Manager {
	if engine == nil {
		engine = state.New()
	}
	return &Manager{
		store:  store,
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger configures the diagnostic logger. Nil restores the discard logger.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m.logger = l
}

// SetProgressCallback configures an optional callback run after each
// persisted operation.
func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.progressCallback = cb
}

// Start validates the definition at path and, if it is usable, creates and
// saves a new instance.
//
// The validation report is returned whenever validation ran, including when
// Start fails. Definitions with errors are refused with [ErrInvalidDefinition]
// unless opts.Force is set; warnings never block.
func (m *Manager) Start(path string, opts StartOptions) (*state.ExecutionState, *validator.Report, error) {
	doc, err := definition.ParseFile(path)
	if err != nil {
		return nil, validator.ValidateFile(path, opts.Validation), fmt.Errorf("failed to load workflow definition: %w", err)
	}

	report := validator.Validate(doc, opts.Validation)
	if !report.Valid && !opts.Force {
		return nil, report, fmt.Errorf("%w: %s", ErrInvalidDefinition, report.Summary())
	}

	cfg := opts.Instance
	if cfg.DefinitionPath == "" {
		cfg.DefinitionPath = path
	}
	st, err := m.engine.CreateState(doc.Workflow, cfg)
	if err != nil {
		return nil, report, err
	}
	if err := m.store.Save(st); err != nil {
		return nil, report, err
	}

	m.logger.Info("workflow started",
		"instance_id", st.InstanceID,
		"op", OpStart,
		"workflow_id", st.WorkflowID,
		"steps", len(st.Steps),
		"forced", opts.Force && !report.Valid)
	m.notify(OpStart, st, -1)
	return st, report, nil
}

// Status loads an instance without modifying it.
func (m *Manager) Status(instanceID string) (*state.ExecutionState, error) {
	return m.store.Load(instanceID)
}

// Handoff renders the handoff summary of an instance.
func (m *Manager) Handoff(instanceID string) (string, error) {
	st, err := m.store.Load(instanceID)
	if err != nil {
		return "", err
	}
	return state.HandoffSummary(st), nil
}

// Next returns the instance with its current step settled. When the current
// step is already completed or skipped the instance advances first and the
// result is saved; otherwise nothing is written.
func (m *Manager) Next(instanceID string) (*state.ExecutionState, error) {
	st, err := m.store.Load(instanceID)
	if err != nil {
		return nil, err
	}
	current := state.CurrentStep(st)
	if current == nil || !current.Status.IsTerminal() {
		return st, nil
	}
	index := current.StepIndex
	return m.apply(instanceID, OpAdvance, index, func(st *state.ExecutionState) error {
		state.AdvanceStep(st)
		return nil
	})
}

// Begin marks a step in progress for the given session.
func (m *Manager) Begin(instanceID string, index int, sessionID string) (*state.ExecutionState, error) {
	return m.apply(instanceID, OpBegin, index, func(st *state.ExecutionState) error {
		return m.engine.StartStep(st, index, sessionID)
	})
}

// Complete marks a step completed, records its artifacts and advances when
// the step was the current one. Artifact paths are stored for tracked
// artifacts only.
func (m *Manager) Complete(instanceID string, index int, artifacts []Artifact) (*state.ExecutionState, error) {
	return m.apply(instanceID, OpComplete, index, func(st *state.ExecutionState) error {
		names := make([]string, 0, len(artifacts))
		for _, a := range artifacts {
			names = append(names, a.Name)
		}
		if err := m.engine.MarkStepCompleted(st, index, names); err != nil {
			return err
		}
		for _, a := range artifacts {
			if a.Path == "" {
				continue
			}
			if err := state.SetArtifactPath(st, a.Name, a.Path); err != nil && !errors.Is(err, state.ErrArtifactNotFound) {
				return err
			}
		}
		if st.CurrentStepIndex == index {
			state.AdvanceStep(st)
		}
		return nil
	})
}

// Skip skips an optional step and advances when it was the current one.
func (m *Manager) Skip(instanceID string, index int) (*state.ExecutionState, error) {
	return m.apply(instanceID, OpSkip, index, func(st *state.ExecutionState) error {
		if err := m.engine.MarkStepSkipped(st, index); err != nil {
			return err
		}
		if st.CurrentStepIndex == index {
			state.AdvanceStep(st)
		}
		return nil
	})
}

// Decide appends a decision for a step.
func (m *Manager) Decide(instanceID string, index int, decision string) (*state.ExecutionState, error) {
	return m.apply(instanceID, OpDecide, index, func(st *state.ExecutionState) error {
		return m.engine.RecordDecision(st, index, decision)
	})
}

// Abort aborts an active instance.
func (m *Manager) Abort(instanceID, reason string) (*state.ExecutionState, error) {
	return m.apply(instanceID, OpAbort, -1, func(st *state.ExecutionState) error {
		return m.engine.Abort(st, reason)
	})
}

// apply loads the instance, runs fn and saves the result. Nothing is saved
// when fn fails.
func (m *Manager) apply(instanceID string, op Operation, index int, fn func(*state.ExecutionState) error) (*state.ExecutionState, error) {
	st, err := m.store.Load(instanceID)
	if err != nil {
		return nil, err
	}

	if err := fn(st); err != nil {
		m.logger.Warn("operation rejected",
			"instance_id", instanceID,
			"op", op,
			"step", index,
			"error", err)
		return nil, err
	}

	if err := m.store.Save(st); err != nil {
		return nil, err
	}

	m.logger.Info("state updated",
		"instance_id", instanceID,
		"op", op,
		"step", index,
		"status", st.Status,
		"current_step", st.CurrentStepIndex)
	m.notify(op, st, index)
	return st, nil
}

func (m *Manager) notify(op Operation, st *state.ExecutionState, index int) {
	if m.progressCallback != nil {
		m.progressCallback(op, st, index)
	}
}
