// Package dsl loads and validates flow documents: YAML decode via
// gopkg.in/yaml.v3 (model.Step's and model.Action's UnmarshalYAML methods do the
// structural work), then JSON Schema validation against an embedded
// schema via github.com/santhosh-tekuri/jsonschema/v5.
package dsl

import (
	"encoding/json"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wyrdbound/grimoire/docs"
	"github.com/wyrdbound/grimoire/model"
)

// Parse reads a YAML flow file from the given path and unmarshals it into a Flow struct.
func Parse(path string) (*model.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFromString(string(data))
}

// ParseFromString unmarshals a YAML string into a Flow struct.
func ParseFromString(yamlStr string) (*model.Flow, error) {
	var flow model.Flow
	if err := yaml.Unmarshal([]byte(yamlStr), &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// Validate runs JSON-Schema validation against the embedded flow schema,
// in addition to the structural checks model.Step's and model.Action's
// UnmarshalYAML already performed (UnknownField etc.) while parsing.
func Validate(flow *model.Flow) error {
	jsonBytes, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	schema, err := jsonschema.CompileString("flow.schema.json", docs.FlowSchema)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
