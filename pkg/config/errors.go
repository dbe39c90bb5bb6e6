package config

import (
	"errors"
)

// Errors returned while reading a configuration file.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrNoConfig         = errors.New("no configuration file found")
)

// Errors reported by Validate and schema validation, wrapped in *Error.
var (
	ErrMissingPort     = errors.New("port is required")
	ErrInvalidPort     = errors.New("port must be between 1 and 65535")
	ErrMissingEndpoint = errors.New("endpoint.url is required unless schemaFile is set")
	ErrInvalidEndpoint = errors.New("endpoint.url must be an absolute http or https URL")
	ErrInvalidOverride = errors.New("invalid override")
	ErrInvalidValue    = errors.New("invalid value")
)

// Error is a configuration error for one field. Field is a dotted path
// such as "endpoint.url"; it is empty for document-level problems.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "config: "
	if e.Field != "" {
		msg += e.Field + ": "
	}
	switch {
	case e.Err != nil && e.Message != "":
		msg += e.Err.Error() + ": " + e.Message
	case e.Err != nil:
		msg += e.Err.Error()
	default:
		msg += e.Message
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
