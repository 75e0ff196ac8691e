package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EventFile is the YAML document read by the run command:
//
//	events:
//	  - dispatch: setCount
//	    payload: 5
//	  - dispatch: toggleTodo
//	    key: "id#1"
type EventFile struct {
	Events []EventStep `yaml:"events"`
}

// EventStep is one event to dispatch.
type EventStep struct {
	Dispatch string `yaml:"dispatch"`
	Payload  any    `yaml:"payload,omitempty"`
	Key      any    `yaml:"key,omitempty"`
}

// LoadEvents reads an event file. Unknown fields are rejected.
func LoadEvents(path string) ([]EventStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var file EventFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse events YAML: %w", err)
	}

	for i, ev := range file.Events {
		if ev.Dispatch == "" {
			return nil, fmt.Errorf("events[%d]: dispatch is required", i)
		}
	}
	return file.Events, nil
}
