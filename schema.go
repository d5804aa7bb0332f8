package docbridge

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateConfig checks a plugin configuration against the plugin's declared
// JSON Schema. A missing required option or a type mismatch is an error, which
// marks the plugin Invalid. Option names present in the config but absent from
// the schema are returned as warnings only, so configs written for newer
// plugin versions stay loadable.
func ValidateConfig(schema string, config map[string]any) ([]string, error) {
	if config == nil {
		config = map[string]any{}
	}

	doc, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("config not serializable: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("bad config schema: %w", err)
	}

	if !result.Valid() {
		for _, re := range result.Errors() {
			if re.Type() == "required" {
				if prop, ok := re.Details()["property"].(string); ok {
					return nil, fmt.Errorf("missing required field: %s", prop)
				}
			}
		}
		// No required violation; report the first error verbatim.
		return nil, fmt.Errorf("config validation failed: %s", result.Errors()[0].String())
	}

	return unknownKeys(schema, config), nil
}

// unknownKeys lists config options the schema doesn't declare. Forward
// compatible: these are warnings, never failures.
func unknownKeys(schema string, config map[string]any) []string {
	var decl struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(schema), &decl); err != nil || decl.Properties == nil {
		return nil
	}

	var unknown []string
	for key := range config {
		if _, ok := decl.Properties[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
