package judge

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// responseSchema is the contract a judge reply must satisfy. Either metric
// may be null, but at least one key must be present.
const responseSchema = `{
  "type": "object",
  "properties": {
    "refusal_accuracy": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "faithfulness":     {"type": ["number", "null"], "minimum": 0, "maximum": 1},
    "reasoning":        {"type": "string"}
  },
  "anyOf": [
    {"required": ["refusal_accuracy"]},
    {"required": ["faithfulness"]}
  ]
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(responseSchema), &doc); err != nil {
		return nil, fmt.Errorf("invalid response schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("judge-response.json", doc); err != nil {
		return nil, fmt.Errorf("invalid response schema: %w", err)
	}
	return c.Compile("judge-response.json")
})

// extractJSON returns the outermost {...} span of content, which tolerates
// code fences and surrounding prose.
func extractJSON(content string) (string, bool) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// validateResponse parses content and checks it against the response
// schema.
func validateResponse(content string) (map[string]any, error) {
	raw, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in judge response: %s", truncate(content, 200))
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("judge response is not valid JSON: %w", err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("judge response does not match schema: %v", err)
	}
	obj, _ := v.(map[string]any)
	return obj, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
