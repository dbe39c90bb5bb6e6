package operation

import "fmt"

// ParseError reports a syntax error in one document.
type ParseError struct {
	Document string
	Line     int
	Column   int
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Document, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Document, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnresolvedFragmentError reports a fragment spread whose target is not
// defined in any cataloged document.
type UnresolvedFragmentError struct {
	Document   string
	Definition string
	Fragment   string
}

func (e *UnresolvedFragmentError) Error() string {
	def := e.Definition
	if def == "" {
		def = "anonymous operation"
	}
	return fmt.Sprintf("%s: %s spreads undefined fragment %q", e.Document, def, e.Fragment)
}
