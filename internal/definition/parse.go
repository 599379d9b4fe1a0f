package definition

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when a definition parses to nothing.
var ErrEmptyDocument = errors.New("definition is empty")

// ParseFile reads and parses the definition at path.
//
// Read failures are returned wrapped with the underlying fs error so callers
// can distinguish a missing file (errors.Is(err, fs.ErrNotExist)) from a
// syntax error.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse decodes YAML bytes into a [Document].
//
// Parse only fails when the input is not valid YAML for the definition shape
// or decodes to an empty/null value. Missing fields are not errors here; they
// are reported by the validator.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, ErrEmptyDocument
	}
	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return nil, ErrEmptyDocument
	}
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse workflow definition: line %d: expected a mapping at the document root", top.Line)
	}

	var raw struct {
		Workflow *Workflow `yaml:"workflow"`
	}
	if err := top.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}
	if raw.Workflow != nil {
		for i := range raw.Workflow.Sequence {
			raw.Workflow.Sequence[i].Index = i
		}
	}
	return &Document{Workflow: raw.Workflow}, nil
}

// stepFields mirrors the YAML shape of a work step.
type stepFields struct {
	Agent         string     `yaml:"agent"`
	Creates       string     `yaml:"creates"`
	Updates       string     `yaml:"updates"`
	Validates     string     `yaml:"validates"`
	Action        string     `yaml:"action"`
	Requires      stringList `yaml:"requires"`
	Condition     string     `yaml:"condition"`
	Optional      bool       `yaml:"optional"`
	Notes         string     `yaml:"notes"`
	OptionalSteps stringList `yaml:"optional_steps"`
	Repeats       string     `yaml:"repeats"`
}

// UnmarshalYAML decodes either a control marker or a work step.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	*s = Step{Line: value.Line}

	switch value.Kind {
	case yaml.ScalarNode:
		// A bare scalar may name a marker ("- workflow_end"). Anything else is
		// left as an empty step for the validator to flag.
		if m := ControlMarker(strings.TrimSpace(value.Value)); m.IsValid() {
			s.Marker = m
		}
		return nil

	case yaml.MappingNode:
		if len(value.Content) == 2 {
			if m := ControlMarker(value.Content[0].Value); m.IsValid() {
				s.Marker = m
				body := value.Content[1]
				if body.Kind == yaml.MappingNode {
					var fields stepFields
					if err := body.Decode(&fields); err != nil {
						return err
					}
					s.Action = fields.Action
					s.Notes = fields.Notes
				}
				return nil
			}
		}

		var fields stepFields
		if err := value.Decode(&fields); err != nil {
			return err
		}
		s.Agent = strings.TrimSpace(fields.Agent)
		s.Creates = strings.TrimSpace(fields.Creates)
		s.Updates = strings.TrimSpace(fields.Updates)
		s.Validates = strings.TrimSpace(fields.Validates)
		s.Action = strings.TrimSpace(fields.Action)
		s.Requires = fields.Requires
		s.Condition = fields.Condition
		s.Optional = fields.Optional
		s.Notes = fields.Notes
		s.OptionalSteps = fields.OptionalSteps
		s.Repeats = fields.Repeats
		for i := 0; i+1 < len(value.Content); i += 2 {
			if value.Content[i].Value == "condition" {
				s.HasCondition = true
			}
		}
		return nil
	}

	return fmt.Errorf("line %d: sequence entry must be a mapping or a control marker", value.Line)
}

// stringList accepts either a single scalar or a sequence of scalars.
// Blank and repeated entries are dropped; first occurrence order is kept.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		v := strings.TrimSpace(value.Value)
		if v == "" {
			*l = nil
			return nil
		}
		*l = stringList{v}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		out := make(stringList, 0, len(items))
		seen := make(map[string]bool, len(items))
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
		if len(out) == 0 {
			out = nil
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}
