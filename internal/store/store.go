// Package store persists workflow execution state as YAML files.
//
// Each instance lives in its own file, <state dir>/<instance_id>.yaml. Writes
// go to a temporary file that is renamed over the target, so a reader never
// sees a partial record. A per-instance advisory lock (gofrs/flock) keeps two
// processes from interleaving writes to the same instance. Lock files live in
// <state dir>/.locks and are left in place after a save.
//
// Key types:
//   - [Store] reads, writes and lists state files
//   - [Summary] is the listing view of one instance
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"bmadflow/internal/definition"
	"bmadflow/internal/state"
)

// DefaultStateDir is the state directory relative to the project root.
const DefaultStateDir = ".bmad-state/workflows"

// StateDirEnv overrides every other state directory setting when set.
const StateDirEnv = "BMADFLOW_STATE_DIR"

// fileExt is the extension of state files.
const fileExt = ".yaml"

// lockDirName is the state directory subdirectory holding lock files.
const lockDirName = ".locks"

// ErrStateNotFound indicates no state file exists for an instance id.
var ErrStateNotFound = errors.New("workflow instance not found")

// ResolveDir determines the state directory.
//
// Resolution order:
//  1. BMADFLOW_STATE_DIR environment variable (used as-is if set)
//  2. Explicit stateDir parameter, joined to basePath when relative
//  3. DefaultStateDir under basePath
//
// The basePath is the project root directory. Pass empty string for cwd.
func ResolveDir(basePath, stateDir string) string {
	if envDir := os.Getenv(StateDirEnv); envDir != "" {
		return envDir
	}
	if stateDir != "" {
		if filepath.IsAbs(stateDir) {
			return stateDir
		}
		return filepath.Join(basePath, stateDir)
	}
	return filepath.Join(basePath, DefaultStateDir)
}

// Store reads and writes [state.ExecutionState] records.
//
// Use [NewStore] for the default directory or [NewStoreWithDir] for an
// explicit one.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a [Store] rooted at the default state directory under
// basePath. The BMADFLOW_STATE_DIR environment variable overrides it.
func NewStore(basePath string) *Store {
	return NewStoreWithDir(basePath, "")
}

// NewStoreWithDir creates a [Store] using stateDir, resolved by [ResolveDir].
func NewStoreWithDir(basePath, stateDir string) *Store {
	return &Store{
		dir: ResolveDir(basePath, stateDir),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Dir returns the resolved state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state file path for an instance id.
func (s *Store) Path(instanceID string) (string, error) {
	if !definition.IsSafeID(instanceID) {
		return "", fmt.Errorf("%w: %q", state.ErrInvalidInstanceID, instanceID)
	}
	return filepath.Join(s.dir, instanceID+fileExt), nil
}

// Exists reports whether a state file exists for instanceID.
func (s *Store) Exists(instanceID string) bool {
	path, err := s.Path(instanceID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes st to its state file, refreshing UpdatedAt first.
//
// UpdatedAt always moves forward, even when the clock has not advanced
// since the previous save. The state value is updated in place.
func (s *Store) Save(st *state.ExecutionState) error {
	path, err := s.Path(st.InstanceID)
	if err != nil {
		return err
	}
	lockDir := filepath.Join(s.dir, lockDirName)
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := flock.New(filepath.Join(lockDir, st.InstanceID+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock workflow state: %w", err)
	}
	defer lock.Unlock()

	previous := st.UpdatedAt
	now := s.now()
	if !now.After(previous) {
		now = previous.Add(time.Nanosecond)
	}
	st.UpdatedAt = now

	data, err := yaml.Marshal(st)
	if err != nil {
		st.UpdatedAt = previous
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}

	// Write atomically (write to temp, then rename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		st.UpdatedAt = previous
		return fmt.Errorf("failed to write workflow state: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		st.UpdatedAt = previous
		return fmt.Errorf("failed to write workflow state: %w", err)
	}
	return nil
}

// Load reads the state of instanceID.
//
// Returns an error wrapping [ErrStateNotFound] when no file exists.
func (s *Store) Load(instanceID string) (*state.ExecutionState, error) {
	path, err := s.Path(instanceID)
	if err != nil {
		return nil, err
	}
	return readFile(path, instanceID)
}

func readFile(path, instanceID string) (*state.ExecutionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, instanceID)
		}
		return nil, fmt.Errorf("failed to read workflow state: %w", err)
	}

	var st state.ExecutionState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to read workflow state %s: %w", instanceID, err)
	}
	if st.InstanceID == "" {
		return nil, fmt.Errorf("failed to read workflow state %s: missing instance_id", instanceID)
	}
	return &st, nil
}

// Summary is the listing view of one persisted instance.
type Summary struct {
	InstanceID   string
	WorkflowID   string
	WorkflowName string
	Status       state.InstanceStatus
	CurrentPhase string
	Progress     state.ProgressInfo
	StartedAt    time.Time
	UpdatedAt    time.Time
	Path         string
}

func summarize(st *state.ExecutionState, path string) Summary {
	return Summary{
		InstanceID:   st.InstanceID,
		WorkflowID:   st.WorkflowID,
		WorkflowName: st.WorkflowName,
		Status:       st.Status,
		CurrentPhase: st.CurrentPhase,
		Progress:     state.Progress(st),
		StartedAt:    st.StartedAt,
		UpdatedAt:    st.UpdatedAt,
		Path:         path,
	}
}

// List returns a summary of every persisted instance sorted by start time,
// oldest first. A missing state directory yields an empty list.
//
// Files that cannot be read are skipped; their errors are joined into the
// returned error, which may be non-nil alongside a usable list.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to list workflow states: %w", err)
	}

	summaries := []Summary{}
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		path := filepath.Join(s.dir, name)
		st, err := readFile(path, strings.TrimSuffix(name, fileExt))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, summarize(st, path))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].InstanceID < summaries[j].InstanceID
		}
		return summaries[i].StartedAt.Before(summaries[j].StartedAt)
	})
	return summaries, errors.Join(errs...)
}

// ListActive returns the summaries of instances whose status is active.
func (s *Store) ListActive() ([]Summary, error) {
	all, err := s.List()
	active := []Summary{}
	for _, sum := range all {
		if sum.Status == state.InstanceActive {
			active = append(active, sum)
		}
	}
	return active, err
}
