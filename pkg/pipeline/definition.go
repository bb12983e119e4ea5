package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aikoservices/aiko/pkg/element"
)

// ElementDefinition is one node's on-disk definition: its graph name,
// either a local module descriptor or a remote service filter, and its
// own parameter overrides.
type ElementDefinition struct {
	Name       string            `yaml:"name"`
	Module     string            `yaml:"module,omitempty"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
	Remote     *RemoteFilter     `yaml:"remote,omitempty"`
}

// RemoteFilter mirrors element.RemoteFilter for YAML decoding.
type RemoteFilter struct {
	Name      string   `yaml:"name,omitempty"`
	Protocol  string   `yaml:"protocol,omitempty"`
	Transport string   `yaml:"transport,omitempty"`
	Owner     string   `yaml:"owner,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
}

// Definition is a Pipeline's on-disk configuration: its graph's
// sub-graph S-expressions (spec.md §4.1/§4.2), the elements that
// populate it, and pipeline-level default parameters.
type Definition struct {
	Version    string              `yaml:"version"`
	Name       string              `yaml:"name"`
	Runtime    string              `yaml:"runtime,omitempty"`
	Graph      []string            `yaml:"graph"`
	Elements   []ElementDefinition `yaml:"elements"`
	Parameters map[string]string  `yaml:"parameters,omitempty"`
}

// knownVersions lists the PipelineDefinition versions this parser
// accepts, per spec.md §3: "parsers must reject unknown versions."
var knownVersions = map[string]bool{
	"0": true,
	"1": true,
}

// LoadDefinition reads and parses a pipeline definition from path.
// YAML is used for the on-disk artifact itself, per SPEC_FULL.md §14 —
// graph sub-expressions and wire commands remain S-expressions.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if !knownVersions[def.Version] {
		return nil, fmt.Errorf("pipeline: unknown definition version %q", def.Version)
	}
	return &def, nil
}

func toElementFilter(f *RemoteFilter) element.RemoteFilter {
	if f == nil {
		return element.RemoteFilter{}
	}
	return element.RemoteFilter{
		Name:      f.Name,
		Protocol:  f.Protocol,
		Transport: f.Transport,
		Owner:     f.Owner,
		Tags:      f.Tags,
	}
}
