// Package nlu provides best-effort structured-entity extraction from an
// LLM. Results are advisory: the dialogue engine always falls back to
// local pattern extraction, and any failure here degrades to an empty
// entity map rather than blocking the turn.
package nlu

import (
	"context"
	"strconv"
)

// Entities is the advisory entity map returned by the model. Values are
// whatever JSON the model produced, so typed access goes through the
// tolerant accessors below.
type Entities map[string]interface{}

// Result is the outcome of one advisory extraction pass.
type Result struct {
	Intent   string
	Entities Entities
}

// Analyzer extracts advisory entities from one user utterance given the
// current dialogue step label.
type Analyzer interface {
	Analyze(ctx context.Context, text, stepLabel string) (Result, error)
}

// Client is the minimal LLM completion surface the analyzer needs.
type Client interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// String returns the entity under key as a string, or "" when absent or
// not string-shaped.
func (e Entities) String(key string) string {
	if e == nil {
		return ""
	}
	switch v := e[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Int returns the entity under key as an int, tolerating JSON numbers and
// numeric strings.
func (e Entities) Int(key string) (int, bool) {
	if e == nil {
		return 0, false
	}
	switch v := e[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float returns the entity under key as a float64, tolerating numeric
// strings.
func (e Entities) Float(key string) (float64, bool) {
	if e == nil {
		return 0, false
	}
	switch v := e[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Bool returns the entity under key as a bool.
func (e Entities) Bool(key string) (bool, bool) {
	if e == nil {
		return false, false
	}
	v, ok := e[key].(bool)
	return v, ok
}

// Disabled is an Analyzer that always returns empty entities. Used when
// no LLM provider is configured; the local extractors carry the dialogue
// on their own.
type Disabled struct{}

// Analyze implements Analyzer.
func (Disabled) Analyze(ctx context.Context, text, stepLabel string) (Result, error) {
	return Result{Entities: Entities{}}, nil
}
