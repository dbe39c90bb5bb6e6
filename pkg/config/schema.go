package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// JSONSchema returns the JSON Schema configuration documents are checked
// against.
func JSONSchema() string {
	return schemaJSON
}

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add configuration schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a decoded document (JSON numbers as json.Number)
// against the embedded schema.
func validateDocument(doc any) error {
	s, err := configSchema()
	if err != nil {
		return err
	}
	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var errs []error
	collectSchemaErrors(ve, &errs)
	return errors.Join(errs...)
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]error) {
	if len(ve.Causes) == 0 {
		field := fieldFromPointer(ve.InstanceLocation)
		*errs = append(*errs, &Error{Field: field, Message: ve.Message, Err: fieldError(field)})
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}

// fieldFromPointer turns "/endpoint/url" into "endpoint.url".
func fieldFromPointer(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	return strings.ReplaceAll(ptr, "/", ".")
}

func fieldError(field string) error {
	switch {
	case field == "port":
		return ErrInvalidPort
	case field == "endpoint.url":
		return ErrInvalidEndpoint
	case field == "overrides" || strings.HasPrefix(field, "overrides."):
		return ErrInvalidOverride
	}
	return ErrInvalidValue
}
