package relevance

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/recallhq/recall/pkg/entity"
)

// Intent is a status suggestion extracted from free text
type Intent struct {
	Status        entity.Status `json:"suggested_status"`
	Confidence    float64       `json:"confidence"`
	MatchedPhrase string        `json:"matched_phrase"`
}

// Classifier maps text to an optional status intent. The default is
// pattern-table driven; an embedding-backed implementation can be swapped
// in without touching the automation engine.
type Classifier interface {
	Classify(text string, current entity.Status) (Intent, bool)
}

// Patterns are the classification tables, loaded from data rather than
// embedded in logic so strategies can be substituted wholesale.
type Patterns struct {
	StatusIntents    []StatusIntentPattern `json:"status_intents"`
	WorkflowPatterns []WorkflowPattern     `json:"workflow_patterns"`
	BlockingKeywords []string              `json:"blocking_keywords"`
}

// StatusIntentPattern maps trigger phrases to a suggested status
type StatusIntentPattern struct {
	Status     entity.Status `json:"status"`
	Confidence float64       `json:"confidence"`
	Phrases    []string      `json:"phrases"`
}

// WorkflowPattern is a category-specific completion heuristic
type WorkflowPattern struct {
	Category   string        `json:"category"`
	Status     entity.Status `json:"status"`
	Confidence float64       `json:"confidence"`
	RequireAll []string      `json:"require_all,omitempty"`
	RequireAny []string      `json:"require_any,omitempty"`
}

//go:embed patterns.json
var defaultPatternsJSON []byte

const patternsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["status_intents"],
	"properties": {
		"status_intents": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["status", "confidence", "phrases"],
				"properties": {
					"status": {"enum": ["todo", "in_progress", "done", "blocked"]},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"phrases": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
				}
			}
		},
		"workflow_patterns": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["category", "status", "confidence"],
				"properties": {
					"category": {"type": "string", "minLength": 1},
					"status": {"enum": ["todo", "in_progress", "done", "blocked"]},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"require_all": {"type": "array", "items": {"type": "string"}},
					"require_any": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"blocking_keywords": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`

// DefaultPatterns returns the built-in classification tables
func DefaultPatterns() Patterns {
	var p Patterns
	// the embedded file is validated by tests; a decode failure here is a
	// build defect
	if err := json.Unmarshal(defaultPatternsJSON, &p); err != nil {
		panic(fmt.Sprintf("embedded patterns invalid: %v", err))
	}
	return p
}

// LoadPatterns reads and schema-validates a pattern table file
func LoadPatterns(path string) (Patterns, error) {
	var p Patterns

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read patterns file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(patternsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return p, fmt.Errorf("validate patterns file: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return p, fmt.Errorf("patterns file %s invalid: %s", path, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse patterns file: %w", err)
	}
	return p, nil
}

// PatternClassifier is the default, table-driven classifier
type PatternClassifier struct {
	patterns Patterns
}

// NewPatternClassifier creates a classifier over the given tables
func NewPatternClassifier(patterns Patterns) *PatternClassifier {
	return &PatternClassifier{patterns: patterns}
}

// Classify scans text for status-intent phrases. The strongest intent for
// a status other than the current one wins; matching two or more phrases
// of the same status raises confidence slightly.
func (c *PatternClassifier) Classify(text string, current entity.Status) (Intent, bool) {
	lowered := strings.ToLower(text)

	var best Intent
	found := false
	for _, pat := range c.patterns.StatusIntents {
		if pat.Status == current {
			continue
		}
		matches := 0
		first := ""
		for _, phrase := range pat.Phrases {
			if strings.Contains(lowered, strings.ToLower(phrase)) {
				matches++
				if first == "" {
					first = phrase
				}
			}
		}
		if matches == 0 {
			continue
		}
		confidence := pat.Confidence
		if matches >= 2 {
			confidence += 0.05
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
		if !found || confidence > best.Confidence {
			best = Intent{Status: pat.Status, Confidence: confidence, MatchedPhrase: first}
			found = true
		}
	}
	return best, found
}

// Workflow returns the workflow-pattern proposal for a category, if the
// text satisfies the pattern's phrase requirements.
func (c *PatternClassifier) Workflow(category, text string, current entity.Status) (Intent, bool) {
	lowered := strings.ToLower(text)

	for _, pat := range c.patterns.WorkflowPatterns {
		if pat.Category != category || pat.Status == current {
			continue
		}
		if len(pat.RequireAll) > 0 {
			all := true
			for _, phrase := range pat.RequireAll {
				if !strings.Contains(lowered, strings.ToLower(phrase)) {
					all = false
					break
				}
			}
			if !all {
				continue
			}
			return Intent{Status: pat.Status, Confidence: pat.Confidence, MatchedPhrase: pat.RequireAll[0]}, true
		}
		for _, phrase := range pat.RequireAny {
			if strings.Contains(lowered, strings.ToLower(phrase)) {
				return Intent{Status: pat.Status, Confidence: pat.Confidence, MatchedPhrase: phrase}, true
			}
		}
	}
	return Intent{}, false
}

// BlockingKeywords exposes the blocking-keyword table
func (c *PatternClassifier) BlockingKeywords() []string {
	return c.patterns.BlockingKeywords
}
