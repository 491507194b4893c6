package store

import (
	"encoding/json"
	"fmt"
)

// marshalLoaders serializes applied loader names to JSON TEXT.
func marshalLoaders(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := marshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal loaders: %w", err)
	}
	return string(data), nil
}

// marshalEmitted serializes emitted files to JSON TEXT with sorted keys.
func marshalEmitted(emitted map[string]string) (string, error) {
	if emitted == nil {
		emitted = map[string]string{}
	}
	data, err := marshalCanonical(emitted)
	if err != nil {
		return "", fmt.Errorf("marshal emitted: %w", err)
	}
	return string(data), nil
}

func unmarshalLoaders(data string) ([]string, error) {
	names := []string{}
	if data == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal loaders: %w", err)
	}
	return names, nil
}

// unmarshalEmitted returns nil for an empty object.
func unmarshalEmitted(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var emitted map[string]string
	if err := json.Unmarshal([]byte(data), &emitted); err != nil {
		return nil, fmt.Errorf("unmarshal emitted: %w", err)
	}
	return emitted, nil
}
