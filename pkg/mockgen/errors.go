package mockgen

import (
	"errors"
	"fmt"
)

// SelectionMismatchError reports a selected field that the type does not
// define. It means the operation and the schema have drifted apart.
type SelectionMismatchError struct {
	Type  string
	Field string
	Path  Path
}

func (e *SelectionMismatchError) Error() string {
	return fmt.Sprintf("Cannot query field %q on type %q", e.Field, e.Type)
}

// UndefinedFragmentError reports a spread of a fragment that is not
// available to the request.
type UndefinedFragmentError struct {
	Name string
	Path Path
}

func (e *UndefinedFragmentError) Error() string {
	return fmt.Sprintf("Unknown fragment %q", e.Name)
}

// FragmentCycleError reports a fragment that spreads itself. Such a
// fragment is never expanded.
type FragmentCycleError struct {
	Name string
	Path Path
}

func (e *FragmentCycleError) Error() string {
	return fmt.Sprintf("Cannot spread fragment %q within itself", e.Name)
}

// OverrideError wraps a failure raised by an override function.
type OverrideError struct {
	Key  string
	Path Path
	Err  error
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("override %s failed: %v", e.Key, e.Err)
}

func (e *OverrideError) Unwrap() error { return e.Err }

// NoPossibleTypeError reports an abstract type without any concrete type to
// generate.
type NoPossibleTypeError struct {
	Type string
	Path Path
}

func (e *NoPossibleTypeError) Error() string {
	return fmt.Sprintf("abstract type %q has no possible types", e.Type)
}

// ResponsePath returns the location of the failing value in the response.
func (e *SelectionMismatchError) ResponsePath() Path { return e.Path }
func (e *UndefinedFragmentError) ResponsePath() Path { return e.Path }
func (e *FragmentCycleError) ResponsePath() Path     { return e.Path }
func (e *OverrideError) ResponsePath() Path          { return e.Path }
func (e *NoPossibleTypeError) ResponsePath() Path    { return e.Path }

// ErrorPath returns the response path carried by err, or nil.
func ErrorPath(err error) Path {
	var pe interface{ ResponsePath() Path }
	if errors.As(err, &pe) {
		return pe.ResponsePath()
	}
	return nil
}
