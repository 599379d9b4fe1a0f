// Package agents answers "does an agent with this name exist in scope X".
//
// Workflow steps name their agents; the validator checks every name against
// two resolution scopes: the squad scope (agents shipped by a squad or
// expansion pack) and the core scope (agents shipped with the BMAD core).
// Each scope is a [Resolver], a boolean oracle backed by files on disk or by
// a manifest registry.
//
// Key types:
//   - [Resolver] is the per-scope existence oracle
//   - [DirResolver] looks for agent files in a directory
//   - [NameSet] is a registry-backed resolver built from a manifest
//   - [Multi] combines resolvers with any-of semantics
//   - [Layout] describes where agents live on disk; see [Paths] and [Scopes]
package agents

import (
	"os"
	"path/filepath"
	"sort"

	"bmadflow/internal/manifest"
)

// agentFileExtensions are the file extensions tried, in order, for an agent.
var agentFileExtensions = []string{".md", ".yaml", ".yml"}

// Resolver reports whether an agent exists in one resolution scope.
type Resolver interface {
	Exists(name string) bool
}

// DirResolver resolves agents as files named <name>.md, <name>.yaml or
// <name>.yml inside a single directory.
type DirResolver struct {
	dir string
}

// NewDirResolver creates a [DirResolver] rooted at dir.
func NewDirResolver(dir string) *DirResolver {
	return &DirResolver{dir: dir}
}

// Dir returns the directory the resolver searches.
func (r *DirResolver) Dir() string {
	return r.dir
}

// Exists reports whether an agent file exists. Names that are not a single
// safe path element never resolve.
func (r *DirResolver) Exists(name string) bool {
	if !IsValidName(name) {
		return false
	}
	for _, ext := range agentFileExtensions {
		info, err := os.Stat(filepath.Join(r.dir, name+ext))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// NameSet is a static registry of agent names.
type NameSet map[string]struct{}

// NewNameSet builds a [NameSet] from the given names.
func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// FromAgentManifest builds a [NameSet] from a BMAD agent manifest.
func FromAgentManifest(m *manifest.AgentManifest) NameSet {
	set := make(NameSet, len(m.Entries))
	for _, e := range m.Entries {
		set[e.Name] = struct{}{}
	}
	return set
}

// FromSquadManifest builds a [NameSet] from a squad manifest.
func FromSquadManifest(sm *manifest.SquadManifest) NameSet {
	set := make(NameSet, len(sm.Agents))
	for _, a := range sm.Agents {
		set[a.Name] = struct{}{}
	}
	return set
}

// Exists implements [Resolver].
func (s NameSet) Exists(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the registered names in sorted order.
func (s NameSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Multi resolves a name if any of its members does.
type Multi []Resolver

// Exists implements [Resolver].
func (m Multi) Exists(name string) bool {
	for _, r := range m {
		if r != nil && r.Exists(name) {
			return true
		}
	}
	return false
}
