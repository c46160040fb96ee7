package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const durationPattern = `^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// schemaV1 is the JSON Schema for furbot.yaml version 1.
var schemaV1 = strings.ReplaceAll(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "furbot.yaml",
  "type": "object",
  "required": ["version", "bot"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string", "enum": ["1"]},
    "bot": {
      "type": "object",
      "required": ["user_agent"],
      "additionalProperties": false,
      "properties": {
        "subreddit": {"type": "string", "pattern": "^[A-Za-z0-9_]{2,21}$"},
        "user_agent": {"type": "string", "minLength": 8},
        "trigger": {"type": "string", "minLength": 1},
        "ack_phrase": {"type": "string", "minLength": 1},
        "self_token": {"type": "string", "minLength": 1},
        "operator": {"type": "string", "pattern": "^[A-Za-z0-9_-]{3,20}$"},
        "source_url": {"type": "string", "pattern": "^https?://"}
      }
    },
    "search": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "score_floor": {"type": "integer", "minimum": 1},
        "tag_cutoff": {"type": "integer", "minimum": 1},
        "query_term_limit": {"type": "integer", "minimum": 1, "maximum": 40},
        "safe_markers": {"type": "array", "minItems": 1, "items": {"type": "string", "pattern": "^rating:"}},
        "fallback_cooldown": {"type": "string", "pattern": "DURATION"}
      }
    },
    "loop": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "reply_cooldown": {"type": "string", "pattern": "DURATION"},
        "poll_interval": {"type": "string", "pattern": "DURATION"},
        "backoff": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "server_error": {"type": "string", "pattern": "DURATION"},
            "api_error": {"type": "string", "pattern": "DURATION"},
            "unknown": {"type": "string", "pattern": "DURATION"}
          }
        }
      }
    },
    "sweep": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "schedule": {"type": "string", "minLength": 1},
        "page_size": {"type": "integer", "minimum": 1, "maximum": 1000},
        "error_backoff": {"type": "string", "pattern": "DURATION"}
      }
    }
  }
}`, "DURATION", durationPattern)

// ValidateSchema checks a furbot.yaml document against the schema.
func ValidateSchema(yamlBytes []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(yamlBytes, &raw); err != nil {
		return fmt.Errorf("parsing YAML for schema validation: %w", err)
	}

	jsonBytes, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaV1),
		gojsonschema.NewBytesLoader(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		for _, verr := range result.Errors() {
			fmt.Fprintf(&b, "- %s\n", verr)
		}
		return fmt.Errorf("schema validation errors:\n%s", b.String())
	}
	return nil
}

// normalizeYAML turns the map[interface{}]interface{} nodes yaml can
// produce into JSON-marshalable maps.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
