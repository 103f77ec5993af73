package dsl

import (
	"errors"
	"os"

	"github.com/wyrdbound/grimoire/model"
)

// Load reads, parses, validates, and lints a flow file in one step.
func Load(path string) (*model.Flow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	flow, err := ParseFromString(string(raw))
	if err != nil {
		return nil, err
	}
	if err := Validate(flow); err != nil {
		return nil, err
	}
	if errs := Lint(flow); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return flow, nil
}
