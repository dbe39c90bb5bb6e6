package schema

import (
	"sort"
	"strings"
)

// Kind identifies the variant of a type definition or type reference.
type Kind string

// Type kinds. The names match the __TypeKind values of GraphQL introspection.
const (
	KindScalar      Kind = "SCALAR"
	KindObject      Kind = "OBJECT"
	KindInterface   Kind = "INTERFACE"
	KindUnion       Kind = "UNION"
	KindEnum        Kind = "ENUM"
	KindInputObject Kind = "INPUT_OBJECT"
	KindList        Kind = "LIST"
	KindNonNull     Kind = "NON_NULL"
)

// OperationKind identifies a root operation type.
type OperationKind string

// Root operation kinds.
const (
	Query        OperationKind = "query"
	Mutation     OperationKind = "mutation"
	Subscription OperationKind = "subscription"
)

// builtinScalars are the scalars every GraphQL schema provides.
var builtinScalars = []string{"Boolean", "Float", "ID", "Int", "String"}

// IsBuiltinScalar reports whether name is one of the built-in GraphQL scalars.
func IsBuiltinScalar(name string) bool {
	for _, s := range builtinScalars {
		if s == name {
			return true
		}
	}
	return false
}

// TypeRef is a reference to a type as it appears on a field or argument.
// Wrapper references (List, NonNull) carry OfType; named references carry
// only the name and are resolved through the owning Schema.
type TypeRef struct {
	Kind   Kind
	Name   string
	OfType *TypeRef
}

// Named returns a reference to the named type.
func Named(name string) *TypeRef {
	return &TypeRef{Name: name}
}

// ListOf wraps t in a list.
func ListOf(t *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindList, OfType: t}
}

// NonNullOf wraps t in a non-null marker.
func NonNullOf(t *TypeRef) *TypeRef {
	return &TypeRef{Kind: KindNonNull, OfType: t}
}

// IsList reports whether the reference is a list wrapper.
func (t *TypeRef) IsList() bool { return t.Kind == KindList }

// IsNonNull reports whether the reference is a non-null wrapper.
func (t *TypeRef) IsNonNull() bool { return t.Kind == KindNonNull }

// NamedType unwraps all List and NonNull wrappers and returns the type name.
func (t *TypeRef) NamedType() string {
	for t != nil {
		if t.OfType == nil {
			return t.Name
		}
		t = t.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. "[User!]!".
func (t *TypeRef) String() string {
	switch {
	case t == nil:
		return ""
	case t.Kind == KindNonNull:
		return t.OfType.String() + "!"
	case t.Kind == KindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Name
	}
}

// InputValue is an argument or input object field definition.
type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue *string
}

// Field is a field definition owned by an Object or Interface.
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Args              []*InputValue
	IsDeprecated      bool
	DeprecationReason string
}

// Arg returns the argument definition with the given name, or nil.
func (f *Field) Arg(name string) *InputValue {
	for _, a := range f.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Type is a named type definition.
type Type struct {
	Kind        Kind
	Name        string
	Description string

	// Fields is set for OBJECT and INTERFACE, in declaration order.
	Fields []*Field
	// Interfaces is set for OBJECT.
	Interfaces []string
	// PossibleTypes is set for UNION and INTERFACE, in declaration order.
	PossibleTypes []string
	// EnumValues is set for ENUM, in declaration order.
	EnumValues []string
	// InputFields is set for INPUT_OBJECT.
	InputFields []*InputValue

	fieldIndex map[string]*Field
}

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *Field {
	if t.fieldIndex == nil {
		return nil
	}
	return t.fieldIndex[name]
}

// IsComposite reports whether values of this type have a selection set.
func (t *Type) IsComposite() bool {
	return t.Kind == KindObject || t.Kind == KindInterface || t.Kind == KindUnion
}

// IsAbstract reports whether the type is an interface or union.
func (t *Type) IsAbstract() bool {
	return t.Kind == KindInterface || t.Kind == KindUnion
}

func (t *Type) indexFields() {
	t.fieldIndex = make(map[string]*Field, len(t.Fields))
	for _, f := range t.Fields {
		t.fieldIndex[f.Name] = f
	}
}

// Schema is an immutable, fully resolved type graph.
// All references between types are lookups by name into the types map.
type Schema struct {
	types        map[string]*Type
	query        string
	mutation     string
	subscription string
	description  string
}

// Type returns the named type definition, or nil if not found.
func (s *Schema) Type(name string) *Type {
	return s.types[name]
}

// Resolve returns the definition a reference points to after unwrapping.
func (s *Schema) Resolve(t *TypeRef) *Type {
	return s.types[t.NamedType()]
}

// Root returns the root object type for an operation kind, or nil when the
// schema does not define one.
func (s *Schema) Root(kind OperationKind) *Type {
	switch kind {
	case Query:
		return s.types[s.query]
	case Mutation:
		if s.mutation == "" {
			return nil
		}
		return s.types[s.mutation]
	case Subscription:
		if s.subscription == "" {
			return nil
		}
		return s.types[s.subscription]
	}
	return nil
}

// RootName returns the name of the root type for kind, or "".
func (s *Schema) RootName(kind OperationKind) string {
	switch kind {
	case Query:
		return s.query
	case Mutation:
		return s.mutation
	case Subscription:
		return s.subscription
	}
	return ""
}

// Field returns the field fieldName on typeName, or nil.
func (s *Schema) Field(typeName, fieldName string) *Field {
	t := s.types[typeName]
	if t == nil {
		return nil
	}
	return t.Field(fieldName)
}

// TypeNames returns all type names in sorted order, optionally filtered by kind.
func (s *Schema) TypeNames(kinds ...Kind) []string {
	names := make([]string, 0, len(s.types))
	for name, t := range s.types {
		if len(kinds) > 0 && !containsKind(kinds, t.Kind) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PossibleTypes returns the concrete object types of an abstract type in
// declaration order. For an object type it returns the type itself.
func (s *Schema) PossibleTypes(name string) []string {
	t := s.types[name]
	if t == nil {
		return nil
	}
	if t.Kind == KindObject {
		return []string{t.Name}
	}
	return t.PossibleTypes
}

// Implements reports whether the object typeName is a possible type of
// the abstract type abstract (or is abstract itself).
func (s *Schema) Implements(typeName, abstract string) bool {
	if typeName == abstract {
		return true
	}
	for _, p := range s.PossibleTypes(abstract) {
		if p == typeName {
			return true
		}
	}
	return false
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func isIntrospectionName(name string) bool {
	return strings.HasPrefix(name, "__")
}
