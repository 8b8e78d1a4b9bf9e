// Package activation turns stored artifacts into live callable
// namespaces. Ruleset artifacts are fixed-schema JSON documents whose
// conditions are CEL expressions evaluated by an embedded interpreter;
// wasm artifacts are executed in a WASI sandbox. Nothing is ever staged
// on disk.
package activation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaID identifies the ruleset document format.
const SchemaID = "policyforge/ruleset/v1"

// Ruleset is the declarative artifact format produced by the generator.
type Ruleset struct {
	Schema    string     `json:"schema"`
	EntityID  string     `json:"entity_id"`
	Policy    PolicyInfo `json:"policy"`
	Functions []Function `json:"functions"`
}

// PolicyInfo carries the source policy identity through to evaluation
// results ("policy_applied").
type PolicyInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Effective string `json:"effective,omitempty"`
}

// Function declares one callable: its discovery descriptor plus the rule
// table that produces its results.
type Function struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	ResultFields []string          `json:"result_fields,omitempty"`
	Rules        []Rule            `json:"rules"`
	Default      map[string]any    `json:"default"`
}

// Rule is one row of a rule table. When is a CEL expression over the
// "input" argument map; Then holds the outputs produced when it matches.
// Higher priority evaluates first; ties keep declaration order.
type Rule struct {
	ID       string         `json:"id"`
	When     string         `json:"when"`
	Then     map[string]any `json:"then"`
	Priority int            `json:"priority,omitempty"`
}

const rulesetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://policyforge.dev/schemas/ruleset-v1.schema.json",
  "type": "object",
  "required": ["schema", "entity_id", "policy", "functions"],
  "properties": {
    "schema": {"const": "policyforge/ruleset/v1"},
    "entity_id": {"type": "string", "minLength": 1},
    "policy": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "version": {"type": "string"},
        "effective": {"type": "string"}
      }
    },
    "functions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "description", "rules", "default"],
        "properties": {
          "name": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
          "description": {"type": "string"},
          "parameters": {"type": "object", "additionalProperties": {"type": "string"}},
          "result_fields": {"type": "array", "items": {"type": "string"}},
          "rules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "when", "then"],
              "properties": {
                "id": {"type": "string", "minLength": 1},
                "when": {"type": "string", "minLength": 1},
                "then": {"type": "object"},
                "priority": {"type": "integer"}
              }
            }
          },
          "default": {"type": "object"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func rulesetJSONSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		schemaURL := "https://policyforge.dev/schemas/ruleset-v1.schema.json"
		if err := c.AddResource(schemaURL, strings.NewReader(rulesetSchema)); err != nil {
			schemaErr = fmt.Errorf("ruleset schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ParseRuleset decodes and schema-validates a ruleset blob. It does not
// compile expressions; LoadRuleset does that on top.
func ParseRuleset(blob []byte) (*Ruleset, error) {
	schema, err := rulesetJSONSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("ruleset is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("ruleset schema violation: %w", err)
	}

	var rs Ruleset
	if err := json.Unmarshal(blob, &rs); err != nil {
		return nil, fmt.Errorf("ruleset decode failed: %w", err)
	}
	return &rs, nil
}
