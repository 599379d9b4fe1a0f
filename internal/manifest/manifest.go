// Package manifest reads the BMAD registries that list installed agents.
//
// Two registry formats are supported:
//   - the agent manifest CSV (typically _bmad/_cfg/agent-manifest.csv), which
//     catalogs every core agent with its module and source path
//   - the squad manifest YAML (squads/<name>/squad.yaml), which lists the
//     agents a squad contributes
//
// Agent manifest CSV format:
//
//	name,displayName,title,module,path
//	analyst,Mary,Business Analyst,bmm,bmad/bmm/agents/analyst.md
//	pm,John,Product Manager,bmm,bmad/bmm/agents/pm.md
//	dev,Amelia,Developer Agent,bmm,bmad/bmm/agents/dev.md
//
// Only the name column is required. Column order is free and header names are
// matched case-insensitively.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// AgentEntry represents a single row in the agent manifest CSV.
type AgentEntry struct {
	// Name is the agent identifier referenced from workflow steps (e.g., "pm").
	Name string

	// DisplayName is the persona name (e.g., "John").
	DisplayName string

	// Title is the human role title (e.g., "Product Manager").
	Title string

	// Module is the BMAD module that ships the agent (e.g., "bmm").
	Module string

	// Path is the agent source file relative to the project root.
	Path string
}

// AgentManifest holds all agent entries parsed from a manifest CSV file.
type AgentManifest struct {
	// Entries are the agents in manifest order.
	Entries []AgentEntry
}

// ReadFromFile reads and parses an agent manifest CSV file.
func ReadFromFile(path string) (*AgentManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent manifest %s: %w", path, err)
	}
	defer f.Close()

	return parseCSV(f)
}

// ReadFromString parses an agent manifest from a CSV string.
func ReadFromString(data string) (*AgentManifest, error) {
	return parseCSV(strings.NewReader(data))
}

func parseCSV(r io.Reader) (*AgentManifest, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent manifest: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("agent manifest has no header row")
	}

	cols := newColumns(rows[0])
	if !cols.has("name") {
		return nil, errors.New("agent manifest missing required column: name")
	}

	m := &AgentManifest{}
	for i, row := range rows[1:] {
		entry := AgentEntry{
			Name:        cols.value(row, "name"),
			DisplayName: cols.value(row, "displayname"),
			Title:       cols.value(row, "title"),
			Module:      cols.value(row, "module"),
			Path:        cols.value(row, "path"),
		}
		if entry.Name == "" {
			// Line numbers are 1-based and the header is line 1.
			return nil, fmt.Errorf("agent manifest line %d: agent name is required", i+2)
		}
		m.Entries = append(m.Entries, entry)
	}
	if len(m.Entries) == 0 {
		return nil, errors.New("agent manifest contains no agent entries")
	}
	return m, nil
}

// columns maps lower-cased header names to their position.
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, name := range header {
		// Spreadsheet exports may leave a UTF-8 BOM on the first header.
		name = strings.TrimPrefix(name, "\ufeff")
		c[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return c
}

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columns) value(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// GetAgent returns the first entry with the given name, or nil if not found.
func (m *AgentManifest) GetAgent(name string) *AgentEntry {
	for i := range m.Entries {
		if m.Entries[i].Name == name {
			return &m.Entries[i]
		}
	}
	return nil
}

// HasAgent returns true if the manifest lists the given agent.
// The name comparison is case-sensitive.
func (m *AgentManifest) HasAgent(name string) bool {
	return m.GetAgent(name) != nil
}

// AgentsInModule returns the entries shipped by the given module.
func (m *AgentManifest) AgentsInModule(module string) []AgentEntry {
	var out []AgentEntry
	for _, e := range m.Entries {
		if strings.EqualFold(e.Module, module) {
			out = append(out, e)
		}
	}
	return out
}

// Names returns all agent names in sorted order.
func (m *AgentManifest) Names() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}
