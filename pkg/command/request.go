package command

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseRequest decodes a YAML (or JSON) command request. The "command" key selects
// the command; the remaining keys are its parameters.
func ParseRequest(data []byte) (Command, error) {
	var head struct {
		Command Name `yaml:"command"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}

	var cmd Command
	switch head.Command {
	case RunSimulationCommand:
		cmd = &RunSimulation{}
	case RunWithParametersCommand:
		cmd = &RunWithParameters{}
	case "":
		return nil, fmt.Errorf("request has no command")
	default:
		return nil, fmt.Errorf("unknown command %q", head.Command)
	}
	if err := yaml.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("failed to parse %s request: %w", head.Command, err)
	}
	return cmd, nil
}

// LoadRequest reads and decodes a request file.
func LoadRequest(path string) (Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	return ParseRequest(data)
}
