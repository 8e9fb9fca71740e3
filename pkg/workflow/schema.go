package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the JSON Schema for the graph document produced by the
// visual editor. Raw documents are validated against it before decoding so a
// broken export fails loudly at import time instead of during traversal.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "required": ["id", "type", "data"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"enum": ["start", "end", "employee"]},
          "data": {
            "type": "object",
            "properties": {
              "label": {"type": "string"},
              "nodeType": {"enum": ["sequential", "parallel"]},
              "employeeId": {"type": "string"},
              "groupLead": {"type": "string"},
              "groupMembers": {"type": "array", "items": {"type": "string"}}
            }
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

// ValidateDocument checks a raw editor document against the graph schema.
func ValidateDocument(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to validate workflow document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("invalid workflow document: %s", strings.Join(details, "; "))
}
