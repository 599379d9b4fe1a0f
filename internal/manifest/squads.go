package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// SquadManifestFile is the conventional manifest name inside a squad directory.
const SquadManifestFile = "squad.yaml"

// SquadAgent is one agent contributed by a squad.
type SquadAgent struct {
	// Name is the agent identifier (e.g., "game-designer").
	Name string `yaml:"name"`

	// Path is the agent source file relative to the squad directory.
	Path string `yaml:"path"`
}

// squadManifestFile represents the raw YAML structure of squad.yaml.
type squadManifestFile struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description"`
	Agents      []SquadAgent `yaml:"agents"`
}

// SquadManifest holds the agents declared by one squad.
type SquadManifest struct {
	Name        string
	Version     string
	Description string
	Agents      []SquadAgent
}

// ReadSquadFromFile reads and parses a squad manifest YAML file.
//
// The YAML format is:
//
//	name: game-dev
//	version: "1.2.0"
//	agents:
//	  - name: game-designer
//	    path: agents/game-designer.md
//	  - name: game-developer
//	    path: agents/game-developer.md
func ReadSquadFromFile(path string) (*SquadManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read squad manifest: %w", err)
	}

	return ReadSquadFromBytes(data)
}

// ReadSquadFromBytes parses a squad manifest from YAML bytes.
func ReadSquadFromBytes(data []byte) (*SquadManifest, error) {
	var raw squadManifestFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse squad manifest: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("squad manifest has no name")
	}

	for i, a := range raw.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("squad %s: agent at index %d has no name", raw.Name, i)
		}
	}

	return &SquadManifest{
		Name:        raw.Name,
		Version:     raw.Version,
		Description: raw.Description,
		Agents:      raw.Agents,
	}, nil
}

// HasAgent returns true if the squad declares an agent with the given name.
func (sm *SquadManifest) HasAgent(name string) bool {
	for _, a := range sm.Agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

// AgentNames returns all declared agent names in sorted order.
func (sm *SquadManifest) AgentNames() []string {
	names := make([]string, len(sm.Agents))
	for i, a := range sm.Agents {
		names[i] = a.Name
	}
	sort.Strings(names)
	return names
}
