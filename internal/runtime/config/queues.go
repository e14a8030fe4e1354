package config

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/drblury/queueflow/internal/runtime/jsoncodec"
)

// QueueSpecKind tags which shape a queue entry was declared with.
type QueueSpecKind int

const (
	// QueueSpecOptions is a struct entry carrying per-queue overrides.
	QueueSpecOptions QueueSpecKind = iota
	// QueueSpecName is a bare string naming the physical queue.
	QueueSpecName
)

// QueueSpec is one declared queue. A bare string in YAML or JSON decodes to
// a QueueSpecName entry, a mapping decodes to a QueueSpecOptions entry.
type QueueSpec struct {
	Kind QueueSpecKind `yaml:"-" json:"-"`

	// Logical is the application-facing name. Mapping keys fill it in.
	Logical string `yaml:"logicalName" json:"logicalName"`
	// Name is the physical queue name or an absolute queue URL. Defaults to
	// the logical name.
	Name string `yaml:"name" json:"name"`
	// DeadLetter names the logical queue that receives rejected messages.
	DeadLetter string `yaml:"deadLetter" json:"deadLetter"`
	// Readers is how many polling loops Subscribe starts. Defaults to 1.
	Readers int `yaml:"readers" json:"readers"`
	// Endpoint names the endpoint serving this queue. Defaults to "default".
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// Named declares a queue by physical name only.
func Named(name string) QueueSpec {
	return QueueSpec{Kind: QueueSpecName, Name: name}
}

// LogicalName returns the logical name, falling back to the physical name for
// sequence entries that omit it.
func (q QueueSpec) LogicalName() string {
	if q.Logical != "" {
		return q.Logical
	}
	return q.Name
}

// QueueSet is the ordered list of declared queues. It decodes from either a
// mapping (logical name to spec) or a sequence of specs.
type QueueSet []QueueSpec

// Queues builds a QueueSet from a mapping, ordered by logical name.
func Queues(specs map[string]QueueSpec) QueueSet {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	set := make(QueueSet, 0, len(names))
	for _, name := range names {
		spec := specs[name]
		spec.Logical = name
		set = append(set, spec)
	}
	return set
}

type queueSpecFields QueueSpec

func (q *QueueSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*q = Named(node.Value)
		return nil
	}
	var fields queueSpecFields
	if err := node.Decode(&fields); err != nil {
		return err
	}
	*q = QueueSpec(fields)
	q.Kind = QueueSpecOptions
	return nil
}

func (q QueueSpec) MarshalYAML() (any, error) {
	if q.Kind == QueueSpecName {
		return q.Name, nil
	}
	return queueSpecFields(q), nil
}

func (s *QueueSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		set := make(QueueSet, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			var spec QueueSpec
			if err := node.Content[i+1].Decode(&spec); err != nil {
				return fmt.Errorf("queues.%s: %w", key, err)
			}
			spec.Logical = key
			set = append(set, spec)
		}
		*s = set
	case yaml.SequenceNode:
		set := make(QueueSet, 0, len(node.Content))
		for i, item := range node.Content {
			var spec QueueSpec
			if err := item.Decode(&spec); err != nil {
				return fmt.Errorf("queues[%d]: %w", i, err)
			}
			set = append(set, spec)
		}
		*s = set
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("queues: expected mapping or sequence, got %q", node.Value)
		}
		*s = nil
	default:
		return fmt.Errorf("queues: unsupported yaml node kind %d", node.Kind)
	}
	return nil
}

func (q *QueueSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := jsoncodec.Unmarshal(data, &name); err != nil {
			return err
		}
		*q = Named(name)
		return nil
	}
	var fields queueSpecFields
	if err := jsoncodec.Unmarshal(data, &fields); err != nil {
		return err
	}
	*q = QueueSpec(fields)
	q.Kind = QueueSpecOptions
	return nil
}

func (s *QueueSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*s = nil
	case data[0] == '[':
		var list []QueueSpec
		if err := jsoncodec.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
	case data[0] == '{':
		var byName map[string]QueueSpec
		if err := jsoncodec.Unmarshal(data, &byName); err != nil {
			return err
		}
		*s = Queues(byName)
	default:
		return fmt.Errorf("queues: expected object or array")
	}
	return nil
}
