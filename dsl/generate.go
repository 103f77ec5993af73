package dsl

import (
	"gopkg.in/yaml.v3"

	"github.com/wyrdbound/grimoire/model"
)

// FlowToYAML serializes a Flow back to its YAML document form, so a flow
// can be round-tripped through the loader.
func FlowToYAML(flow *model.Flow) ([]byte, error) {
	return yaml.Marshal(flow)
}

// FlowToYAMLString is the string form of FlowToYAML.
func FlowToYAMLString(flow *model.Flow) (string, error) {
	b, err := FlowToYAML(flow)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
