package model

import (
	"fmt"
	"strings"
)

// ParseError reports a source document that could not be read as CodeMeta JSON-LD
type ParseError struct {
	Source string // Path, URL or "-" for stdin
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MappingError reports a transform that could not produce a valid destination value
type MappingError struct {
	Rule   string // Mapping rule that failed (e.g. "readiness-level")
	Field  string // Source field involved
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	var b strings.Builder
	b.WriteString("mapping")
	if e.Rule != "" {
		b.WriteString(" " + e.Rule)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (%s)", e.Field)
	}
	b.WriteString(": " + e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MappingError) Unwrap() error { return e.Err }

// SubmissionError reports a Marketplace API call that was rejected or could not be made
type SubmissionError struct {
	Method     string
	URL        string
	StatusCode int    // 0 when the request never got a response
	Body       string // Response body excerpt
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submit %s %s: %v", e.Method, e.URL, e.Err)
	}
	msg := fmt.Sprintf("submit %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }
