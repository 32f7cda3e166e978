package insights

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaError reports a model response that could not be turned into a JSON
// object. Raw carries the full response text for diagnosis.
type SchemaError struct {
	Reason string
	Raw    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model response rejected: %s", e.Reason)
}

// ResponseParser turns a raw model completion into the extracted fields.
type ResponseParser interface {
	Parse(raw string) (map[string]any, error)
}

// BraceExtractionParser recovers a JSON object from a completion that may
// wrap it in prose or markdown fences. It takes the substring from the first
// '{' to the last '}' and unmarshals that.
type BraceExtractionParser struct{}

// NewBraceExtractionParser creates the default tolerant parser.
func NewBraceExtractionParser() *BraceExtractionParser {
	return &BraceExtractionParser{}
}

// Parse extracts and unmarshals the JSON object embedded in raw.
func (p *BraceExtractionParser) Parse(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &SchemaError{Reason: "no JSON object found in response", Raw: raw}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}
	return fields, nil
}
