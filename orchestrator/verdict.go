package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// CheckIssue is one problem the quality auditor found.
type CheckIssue struct {
	// Severity is "minor", "major" or "critical".
	Severity string `json:"severity"`

	// Section of the report the issue concerns, free-form.
	Section string `json:"section,omitempty"`

	Detail string `json:"detail"`
}

// CheckVerdict is the machine-readable conclusion of a quality check.
type CheckVerdict struct {
	// Score from 0 to 100.
	Score int `json:"score"`

	Passed bool `json:"passed"`

	Issues []CheckIssue `json:"issues,omitempty"`
}

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// verdictSchema compiles the verdict's JSON schema once, reflected from
// the CheckVerdict type itself.
var verdictSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	reflected := reflector.Reflect(CheckVerdict{})

	b, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to JSON-marshal JSON schema: %w", err)
	}
	var schemaMap map[string]any
	if err = json.Unmarshal(b, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to JSON-unmarshal JSON schema: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, fmt.Errorf("failed to compile verdict JSON schema: %w", err)
	}
	return schema, nil
})

// ParseVerdict extracts and validates the verdict block the quality
// checker is instructed to end its reply with. When the reply contains
// several fenced JSON blocks the last one is the verdict.
func ParseVerdict(response string) (*CheckVerdict, error) {
	matches := fencedJSONPattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return nil, errors.New("response contains no fenced JSON block")
	}
	raw := strings.TrimSpace(matches[len(matches)-1][1])

	schema, err := verdictSchema()
	if err != nil {
		return nil, err
	}
	validation, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("verdict is not valid JSON: %w", err)
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("verdict does not match schema: %s", strings.Join(details, "; "))
	}

	var verdict CheckVerdict
	if err = json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}
	if verdict.Score < 0 || verdict.Score > 100 {
		return nil, fmt.Errorf("verdict score %d out of range", verdict.Score)
	}
	return &verdict, nil
}
