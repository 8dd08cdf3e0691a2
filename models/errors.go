package models

import "fmt"

// MsgPromptRequired is returned to clients that omit the prompt
const MsgPromptRequired = "A valid prompt is required"

// ValidationError is malformed client input, surfaced as 400
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AdapterError is an upstream call that failed in transport or returned a non-2xx status
type AdapterError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *AdapterError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s adapter failed", e.Provider)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NoImageError is an upstream call that succeeded but produced nothing usable.
// ResponseText carries a truncated excerpt of what came back instead.
type NoImageError struct {
	Provider     Provider
	Message      string
	ResponseText string
}

func (e *NoImageError) Error() string {
	return e.Message
}
