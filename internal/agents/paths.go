package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bmadflow/internal/manifest"
)

// Context selects which resolution scopes a workflow instance targets.
type Context string

const (
	// ContextCore resolves agents from the core scope only.
	ContextCore Context = "core"

	// ContextSquad resolves agents from a squad, falling back to core.
	ContextSquad Context = "squad"

	// ContextHybrid mixes squad and core agents in one workflow.
	ContextHybrid Context = "hybrid"
)

// IsValid reports whether c is a known target context.
func (c Context) IsValid() bool {
	switch c {
	case ContextCore, ContextSquad, ContextHybrid:
		return true
	}
	return false
}

// ParseContext converts a flag or config value into a [Context].
// An empty string yields [ContextCore].
func ParseContext(s string) (Context, error) {
	if strings.TrimSpace(s) == "" {
		return ContextCore, nil
	}
	c := Context(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid target context %q: must be core, squad or hybrid", s)
	}
	return c, nil
}

// Layout describes where agent definitions live relative to the project.
type Layout struct {
	// CoreAgentsDir holds core agent files (e.g., ".bmad-core/agents").
	CoreAgentsDir string

	// SquadsDir holds one directory per squad (e.g., "squads").
	SquadsDir string

	// AgentManifest is the optional agent manifest CSV for the core scope.
	AgentManifest string
}

// SquadDir returns the root directory of a squad. The name is sanitized.
func (l Layout) SquadDir(squadName string) string {
	return filepath.Join(l.SquadsDir, SanitizeSquadName(squadName))
}

// SquadAgentsDir returns the agents directory of a squad. The name is sanitized.
func (l Layout) SquadAgentsDir(squadName string) string {
	return filepath.Join(l.SquadDir(squadName), "agents")
}

// IsValidName reports whether an agent name is safe to use as a file name.
func IsValidName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// SanitizeSquadName strips path traversal sequences and separators from a
// squad name so it can only ever name a direct child of the squads directory.
func SanitizeSquadName(name string) string {
	s := strings.NewReplacer("/", "", "\\", "", "\x00", "").Replace(name)
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "")
	}
	s = strings.TrimSpace(s)
	if strings.Trim(s, ".") == "" {
		return ""
	}
	return s
}

// Paths returns the directories searched for agent definitions.
//
// The core context yields only the core agents directory. Squad and hybrid
// contexts yield the squad's agents directory first, then the core directory.
// A squad name that sanitizes to nothing yields the core directory only.
func Paths(ctx Context, squadName string, layout Layout) []string {
	squad := SanitizeSquadName(squadName)
	if ctx == ContextCore || ctx == "" || squad == "" {
		return []string{layout.CoreAgentsDir}
	}
	return []string{layout.SquadAgentsDir(squad), layout.CoreAgentsDir}
}

// Scopes builds the core and squad resolvers for a target context.
//
// The core scope is the core agents directory plus the agent manifest when
// that file exists. The squad scope is the squad's agents directory plus its
// squad.yaml when present; it is nil for the core context, so the validator
// falls back to a single-scope existence check.
func Scopes(ctx Context, squadName string, layout Layout) (core, squad Resolver, err error) {
	coreScope := Multi{NewDirResolver(layout.CoreAgentsDir)}
	if layout.AgentManifest != "" {
		if _, statErr := os.Stat(layout.AgentManifest); statErr == nil {
			m, err := manifest.ReadFromFile(layout.AgentManifest)
			if err != nil {
				return nil, nil, err
			}
			coreScope = append(coreScope, FromAgentManifest(m))
		}
	}

	paths := Paths(ctx, squadName, layout)
	if len(paths) == 1 {
		return coreScope, nil, nil
	}

	squadScope := Multi{NewDirResolver(paths[0])}
	manifestPath := filepath.Join(layout.SquadDir(squadName), manifest.SquadManifestFile)
	if _, statErr := os.Stat(manifestPath); statErr == nil {
		sm, err := manifest.ReadSquadFromFile(manifestPath)
		if err != nil {
			return nil, nil, err
		}
		squadScope = append(squadScope, FromSquadManifest(sm))
	}
	return coreScope, squadScope, nil
}
