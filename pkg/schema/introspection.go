package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// IntrospectionQuery is the standard full introspection query sent to the
// endpoint by Loader.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types {
      ...FullType
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args {
      ...InputValue
    }
    type {
      ...TypeRef
    }
    isDeprecated
    deprecationReason
  }
  inputFields {
    ...InputValue
  }
  interfaces {
    ...TypeRef
  }
  enumValues(includeDeprecated: true) {
    name
  }
  possibleTypes {
    ...TypeRef
  }
}

fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
              }
            }
          }
        }
      }
    }
  }
}`

// introspectionResponse accepts both a full GraphQL response ({"data": {"__schema": ...}})
// and a bare introspection result ({"__schema": ...}).
type introspectionResponse struct {
	Data *struct {
		Schema *introspectionSchema `json:"__schema"`
	} `json:"data"`
	Schema *introspectionSchema `json:"__schema"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (r *introspectionResponse) schema() *introspectionSchema {
	if r.Data != nil && r.Data.Schema != nil {
		return r.Data.Schema
	}
	return r.Schema
}

func (r *introspectionResponse) errorMessages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

type introspectionSchema struct {
	Description      *string     `json:"description"`
	QueryType        *namedRef   `json:"queryType"`
	MutationType     *namedRef   `json:"mutationType"`
	SubscriptionType *namedRef   `json:"subscriptionType"`
	Types            []*fullType `json:"types"`
}

type namedRef struct {
	Name string `json:"name"`
}

type fullType struct {
	Kind          Kind          `json:"kind"`
	Name          string        `json:"name"`
	Description   *string       `json:"description"`
	Fields        []*fieldDef   `json:"fields"`
	InputFields   []*inputValue `json:"inputFields"`
	Interfaces    []*typeRef    `json:"interfaces"`
	EnumValues    []*enumValue  `json:"enumValues"`
	PossibleTypes []*typeRef    `json:"possibleTypes"`
}

type fieldDef struct {
	Name              string        `json:"name"`
	Description       *string       `json:"description"`
	Args              []*inputValue `json:"args"`
	Type              *typeRef      `json:"type"`
	IsDeprecated      bool          `json:"isDeprecated"`
	DeprecationReason *string       `json:"deprecationReason"`
}

type inputValue struct {
	Name         string   `json:"name"`
	Description  *string  `json:"description"`
	Type         *typeRef `json:"type"`
	DefaultValue *string  `json:"defaultValue"`
}

type typeRef struct {
	Kind   Kind     `json:"kind"`
	Name   *string  `json:"name"`
	OfType *typeRef `json:"ofType"`
}

type enumValue struct {
	Name string `json:"name"`
}

// FromIntrospection builds a Schema from an introspection result.
func FromIntrospection(r io.Reader) (*Schema, error) {
	return decodeIntrospection(r, "introspection")
}

func decodeIntrospection(r io.Reader, source string) (*Schema, error) {
	var resp introspectionResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, &ParseError{Source: source, Reason: "malformed introspection JSON", Err: err}
	}
	return fromResponse(&resp, source)
}

func fromResponse(resp *introspectionResponse, source string) (*Schema, error) {
	raw := resp.schema()
	if raw == nil {
		if len(resp.Errors) > 0 {
			return nil, &ParseError{Source: source, Reason: "response carries errors and no __schema: " + resp.errorMessages()}
		}
		return nil, &ParseError{Source: source, Reason: "response has no __schema object"}
	}
	s, err := build(raw)
	if err != nil {
		return nil, &ParseError{Source: source, Reason: "building type graph", Err: err}
	}
	return s, nil
}

// build turns the raw introspection model into a resolved Schema in two
// passes: every named type is registered first, then references are
// resolved against the table so forward and cyclic references work.
func build(raw *introspectionSchema) (*Schema, error) {
	if raw.QueryType == nil || raw.QueryType.Name == "" {
		return nil, errors.New("missing query root type")
	}

	s := &Schema{
		types: make(map[string]*Type, len(raw.Types)),
		query: raw.QueryType.Name,
	}
	if raw.Description != nil {
		s.description = *raw.Description
	}
	if raw.MutationType != nil {
		s.mutation = raw.MutationType.Name
	}
	if raw.SubscriptionType != nil {
		s.subscription = raw.SubscriptionType.Name
	}

	// Pass 1: register.
	for _, ft := range raw.Types {
		if ft == nil || isIntrospectionName(ft.Name) {
			continue
		}
		if ft.Name == "" {
			return nil, fmt.Errorf("type of kind %s has no name", ft.Kind)
		}
		if _, dup := s.types[ft.Name]; dup {
			return nil, fmt.Errorf("type %q defined more than once", ft.Name)
		}
		switch ft.Kind {
		case KindScalar, KindObject, KindInterface, KindUnion, KindEnum, KindInputObject:
		default:
			return nil, fmt.Errorf("type %q has unsupported kind %q", ft.Name, ft.Kind)
		}
		t := &Type{Kind: ft.Kind, Name: ft.Name}
		if ft.Description != nil {
			t.Description = *ft.Description
		}
		s.types[ft.Name] = t
	}
	for _, name := range builtinScalars {
		if _, ok := s.types[name]; !ok {
			s.types[name] = &Type{Kind: KindScalar, Name: name}
		}
	}

	// Pass 2: resolve.
	for _, ft := range raw.Types {
		if ft == nil || isIntrospectionName(ft.Name) {
			continue
		}
		if err := s.resolveType(s.types[ft.Name], ft); err != nil {
			return nil, err
		}
	}

	s.linkImplementors()
	if err := s.checkRoots(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) resolveType(t *Type, ft *fullType) error {
	switch t.Kind {
	case KindObject, KindInterface:
		for _, fd := range ft.Fields {
			if isIntrospectionName(fd.Name) {
				continue
			}
			f, err := s.resolveField(t.Name, fd)
			if err != nil {
				return err
			}
			t.Fields = append(t.Fields, f)
		}
		t.indexFields()
		for _, iface := range ft.Interfaces {
			name, err := s.namedOfKind(iface, KindInterface)
			if err != nil {
				return fmt.Errorf("type %q interfaces: %w", t.Name, err)
			}
			t.Interfaces = append(t.Interfaces, name)
		}
		if t.Kind == KindInterface {
			if err := s.resolvePossible(t, ft); err != nil {
				return err
			}
		}
	case KindUnion:
		if err := s.resolvePossible(t, ft); err != nil {
			return err
		}
	case KindEnum:
		for _, v := range ft.EnumValues {
			t.EnumValues = append(t.EnumValues, v.Name)
		}
		if len(t.EnumValues) == 0 {
			return fmt.Errorf("enum %q has no values", t.Name)
		}
	case KindInputObject:
		for _, iv := range ft.InputFields {
			v, err := s.resolveInputValue(iv)
			if err != nil {
				return fmt.Errorf("input %q: %w", t.Name, err)
			}
			t.InputFields = append(t.InputFields, v)
		}
	}
	return nil
}

func (s *Schema) resolvePossible(t *Type, ft *fullType) error {
	for _, p := range ft.PossibleTypes {
		name, err := s.namedOfKind(p, KindObject)
		if err != nil {
			return fmt.Errorf("type %q possible types: %w", t.Name, err)
		}
		t.PossibleTypes = append(t.PossibleTypes, name)
	}
	if t.Kind == KindUnion && len(t.PossibleTypes) == 0 {
		return fmt.Errorf("union %q has no member types", t.Name)
	}
	return nil
}

func (s *Schema) resolveField(owner string, fd *fieldDef) (*Field, error) {
	ref, err := s.resolveRef(fd.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s.%s: %w", owner, fd.Name, err)
	}
	f := &Field{Name: fd.Name, Type: ref, IsDeprecated: fd.IsDeprecated}
	if fd.Description != nil {
		f.Description = *fd.Description
	}
	if fd.DeprecationReason != nil {
		f.DeprecationReason = *fd.DeprecationReason
	}
	for _, a := range fd.Args {
		arg, err := s.resolveInputValue(a)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", owner, fd.Name, err)
		}
		f.Args = append(f.Args, arg)
	}
	return f, nil
}

func (s *Schema) resolveInputValue(iv *inputValue) (*InputValue, error) {
	ref, err := s.resolveRef(iv.Type)
	if err != nil {
		return nil, fmt.Errorf("argument %q: %w", iv.Name, err)
	}
	v := &InputValue{Name: iv.Name, Type: ref, DefaultValue: iv.DefaultValue}
	if iv.Description != nil {
		v.Description = *iv.Description
	}
	return v, nil
}

func (s *Schema) resolveRef(r *typeRef) (*TypeRef, error) {
	if r == nil {
		return nil, errors.New("missing type reference")
	}
	switch r.Kind {
	case KindList, KindNonNull:
		inner, err := s.resolveRef(r.OfType)
		if err != nil {
			return nil, err
		}
		return &TypeRef{Kind: r.Kind, OfType: inner}, nil
	}
	if r.Name == nil || *r.Name == "" {
		return nil, fmt.Errorf("type reference of kind %q has no name", r.Kind)
	}
	t, ok := s.types[*r.Name]
	if !ok {
		return nil, fmt.Errorf("reference to undefined type %q", *r.Name)
	}
	return &TypeRef{Kind: t.Kind, Name: t.Name}, nil
}

func (s *Schema) namedOfKind(r *typeRef, kind Kind) (string, error) {
	if r == nil || r.Name == nil {
		return "", errors.New("missing type name")
	}
	t, ok := s.types[*r.Name]
	if !ok {
		return "", fmt.Errorf("reference to undefined type %q", *r.Name)
	}
	if t.Kind != kind {
		return "", fmt.Errorf("type %q is %s, expected %s", t.Name, t.Kind, kind)
	}
	return t.Name, nil
}

// linkImplementors fills interface possible types from object declarations
// when the source did not list them.
func (s *Schema) linkImplementors() {
	for _, name := range s.TypeNames(KindInterface) {
		iface := s.types[name]
		if len(iface.PossibleTypes) > 0 {
			continue
		}
		for _, objName := range s.TypeNames(KindObject) {
			for _, i := range s.types[objName].Interfaces {
				if i == name {
					iface.PossibleTypes = append(iface.PossibleTypes, objName)
				}
			}
		}
	}
}

func (s *Schema) checkRoots() error {
	for _, root := range []struct {
		kind OperationKind
		name string
	}{{Query, s.query}, {Mutation, s.mutation}, {Subscription, s.subscription}} {
		if root.name == "" {
			continue
		}
		t, ok := s.types[root.name]
		if !ok {
			return fmt.Errorf("%s root type %q is not defined", root.kind, root.name)
		}
		if t.Kind != KindObject {
			return fmt.Errorf("%s root type %q is %s, expected OBJECT", root.kind, root.name, t.Kind)
		}
	}
	return nil
}
