package config

import "fmt"

// ValidationError describes one rejected configuration field.
//
// Example:
//
//	err := &ValidationError{
//	    Field:      "readers",
//	    Message:    "must be at least 1, got 0",
//	    Suggestion: "pass a positive reader count",
//	}
//	// err.Error(): "readers: must be at least 1, got 0\n\nSuggestion: pass a positive reader count"
type ValidationError struct {
	Field      string // yaml name of the field
	Message    string // what is wrong
	Suggestion string // optional fix (empty if none)
}

// Error implements the error interface.
//
// Format: field: message
//
// If Suggestion is non-empty, it's appended on a new line with "Suggestion: " prefix.
func (e *ValidationError) Error() string {
	result := fmt.Sprintf("%s: %s", e.Field, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}
