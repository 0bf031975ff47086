package dataflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// DynamicPath is the node path of nodes registered at runtime.
const DynamicPath = "dynamic"

var (
	// ErrNoNodes is returned for a dataflow without nodes.
	ErrNoNodes = errors.New("dataflow: no nodes")

	// ErrInvalidNode is returned for a node without id or with a duplicate id.
	ErrInvalidNode = errors.New("dataflow: invalid node")
)

// ParsedDataflow is the parsed form of a dora dataflow description. It is
// not modified after parsing.
type ParsedDataflow struct {
	// Path is the file the dataflow was read from, if any.
	Path string

	Nodes           []ParsedNode
	EnvRequirements []EnvRequirement
	LogSources      []LogSource
}

// ParsedNode is one node of a dataflow.
type ParsedNode struct {
	ID        string
	Path      string
	Inputs    []ParsedInput
	Outputs   []string
	Env       map[string]string
	IsDynamic bool
}

// MofaType returns the widget node type of n.
func (n *ParsedNode) MofaType() (dorabridge.NodeType, bool) {
	return dorabridge.NodeTypeFromID(n.ID)
}

// InputIDs returns the ids of the inputs of n in declaration order.
func (n *ParsedNode) InputIDs() []string {
	ids := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		ids[i] = in.ID
	}
	return ids
}

// ParsedInput is one input of a node.
type ParsedInput struct {
	ID string
	// Source is the raw "node/output" reference.
	Source       string
	SourceNode   string
	SourceOutput string
	// QueueSize is 0 when the engine default applies.
	QueueSize int
}

// LogSource is a node output carrying log lines.
type LogSource struct {
	NodeID   string
	OutputID string
}

// IsLogOutput reports whether an output id carries log lines.
func IsLogOutput(id string) bool {
	return id == "log" || strings.HasPrefix(id, "log_")
}

// MofaNodes returns the nodes whose id is a known widget node type.
func (df *ParsedDataflow) MofaNodes() []ParsedNode {
	var nodes []ParsedNode
	for _, n := range df.Nodes {
		if _, ok := n.MofaType(); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Node returns the node with the given id.
func (df *ParsedDataflow) Node(id string) (*ParsedNode, bool) {
	for i := range df.Nodes {
		if df.Nodes[i].ID == id {
			return &df.Nodes[i], true
		}
	}
	return nil, false
}

// MissingEnv returns the env requirements that are unset and have no
// default.
func (df *ParsedDataflow) MissingEnv() []EnvRequirement {
	var missing []EnvRequirement
	for _, r := range df.EnvRequirements {
		if r.Missing() {
			missing = append(missing, r)
		}
	}
	return missing
}

// ParseFile reads and parses the dataflow at path.
func ParseFile(path string) (*ParsedDataflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataflow: read %s: %w", path, err)
	}
	df, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	df.Path = path
	return df, nil
}

// Parse parses a dataflow description. Environment references are
// resolved against the process environment.
func Parse(data []byte) (*ParsedDataflow, error) {
	return parse(data, os.LookupEnv)
}

type dataflowDoc struct {
	Nodes []nodeDoc `yaml:"nodes"`
}

type nodeDoc struct {
	ID      string            `yaml:"id"`
	Path    string            `yaml:"path"`
	Inputs  inputsDoc         `yaml:"inputs"`
	Outputs []string          `yaml:"outputs"`
	Env     map[string]scalar `yaml:"env"`
}

// inputsDoc keeps the declaration order of a node's inputs.
type inputsDoc []ParsedInput

// UnmarshalYAML decodes the inputs mapping. Each value is either a source
// string or an object with source and queue_size.
func (in *inputsDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: inputs must be a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		input := ParsedInput{ID: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			input.Source = val.Value
		case yaml.MappingNode:
			var obj struct {
				Source    string `yaml:"source"`
				QueueSize int    `yaml:"queue_size"`
			}
			if err := val.Decode(&obj); err != nil {
				return fmt.Errorf("input %s: %w", key.Value, err)
			}
			input.Source = obj.Source
			input.QueueSize = obj.QueueSize
		default:
			return fmt.Errorf("line %d: input %s must be a string or mapping", val.Line, key.Value)
		}
		input.SourceNode, input.SourceOutput, _ = strings.Cut(input.Source, "/")
		*in = append(*in, input)
	}
	return nil
}

// scalar accepts env values of any scalar type as text.
type scalar string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: env value must be a scalar", value.Line)
	}
	*s = scalar(value.Value)
	return nil
}

func parse(data []byte, lookup func(string) (string, bool)) (*ParsedDataflow, error) {
	var doc dataflowDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoNodes
		}
		return nil, fmt.Errorf("dataflow: parse: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	df := &ParsedDataflow{}
	seen := make(map[string]bool, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		if nd.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", ErrInvalidNode, i)
		}
		if seen[nd.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidNode, nd.ID)
		}
		seen[nd.ID] = true

		node := ParsedNode{
			ID:        nd.ID,
			Path:      nd.Path,
			Inputs:    []ParsedInput(nd.Inputs),
			Outputs:   nd.Outputs,
			IsDynamic: nd.Path == DynamicPath,
		}
		if len(nd.Env) > 0 {
			node.Env = make(map[string]string, len(nd.Env))
			for k, v := range nd.Env {
				node.Env[k] = string(v)
			}
			df.EnvRequirements = append(df.EnvRequirements, envRequirements(nd.ID, node.Env, lookup)...)
		}
		for _, out := range node.Outputs {
			if IsLogOutput(out) {
				df.LogSources = append(df.LogSources, LogSource{NodeID: nd.ID, OutputID: out})
			}
		}
		df.Nodes = append(df.Nodes, node)
	}
	return df, nil
}
