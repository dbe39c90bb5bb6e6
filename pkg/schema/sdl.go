package schema

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// ParseSDL parses a GraphQL SDL string and returns a Schema.
func ParseSDL(sdl string) (*Schema, error) {
	return parseSDL(sdl, "schema")
}

// ParseSDLFile parses a GraphQL SDL file and returns a Schema.
func ParseSDLFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return parseSDL(string(data), path)
}

func parseSDL(sdl, name string) (*Schema, error) {
	parsed, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, &ParseError{Source: name, Reason: "invalid SDL", Err: err}
	}
	if parsed.Query == nil {
		return nil, &ParseError{Source: name, Reason: "missing query root type"}
	}
	s, err := build(fromAST(parsed))
	if err != nil {
		return nil, &ParseError{Source: name, Reason: "building type graph", Err: err}
	}
	return s, nil
}

// fromAST converts a gqlparser schema into the introspection model so SDL
// and introspection input share one graph builder.
func fromAST(as *ast.Schema) *introspectionSchema {
	raw := &introspectionSchema{QueryType: &namedRef{Name: as.Query.Name}}
	if as.Mutation != nil {
		raw.MutationType = &namedRef{Name: as.Mutation.Name}
	}
	if as.Subscription != nil {
		raw.SubscriptionType = &namedRef{Name: as.Subscription.Name}
	}

	names := declarationOrder(as)
	for _, name := range names {
		def := as.Types[name]
		ft := &fullType{Kind: Kind(def.Kind), Name: def.Name, Description: optString(def.Description)}
		switch def.Kind {
		case ast.Object, ast.Interface:
			for _, fd := range def.Fields {
				ft.Fields = append(ft.Fields, fieldFromAST(fd))
			}
			for _, i := range def.Interfaces {
				ft.Interfaces = append(ft.Interfaces, namedTypeRef(i))
			}
			if def.Kind == ast.Interface {
				for _, objName := range names {
					obj := as.Types[objName]
					if obj.Kind == ast.Object && containsString(obj.Interfaces, def.Name) {
						ft.PossibleTypes = append(ft.PossibleTypes, namedTypeRef(objName))
					}
				}
			}
		case ast.Union:
			for _, m := range def.Types {
				ft.PossibleTypes = append(ft.PossibleTypes, namedTypeRef(m))
			}
		case ast.Enum:
			for _, v := range def.EnumValues {
				ft.EnumValues = append(ft.EnumValues, &enumValue{Name: v.Name})
			}
		case ast.InputObject:
			for _, fd := range def.Fields {
				ft.InputFields = append(ft.InputFields, &inputValue{
					Name:         fd.Name,
					Description:  optString(fd.Description),
					Type:         refFromAST(fd.Type),
					DefaultValue: valueString(fd.DefaultValue),
				})
			}
		}
		raw.Types = append(raw.Types, ft)
	}
	return raw
}

// declarationOrder lists type names in the order they appear in the SDL
// sources. gqlparser keeps types in a map, so implementors of an interface
// would otherwise come out in random order.
func declarationOrder(as *ast.Schema) []string {
	names := make([]string, 0, len(as.Types))
	for name := range as.Types {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := as.Types[names[i]].Position, as.Types[names[j]].Position
		switch {
		case pi == nil || pj == nil:
			if pi == nil && pj == nil {
				return names[i] < names[j]
			}
			return pj == nil
		case pi.Src != pj.Src:
			return srcName(pi.Src) < srcName(pj.Src)
		case pi.Start != pj.Start:
			return pi.Start < pj.Start
		}
		return names[i] < names[j]
	})
	return names
}

func srcName(src *ast.Source) string {
	if src == nil {
		return ""
	}
	return src.Name
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func fieldFromAST(fd *ast.FieldDefinition) *fieldDef {
	f := &fieldDef{
		Name:        fd.Name,
		Description: optString(fd.Description),
		Type:        refFromAST(fd.Type),
	}
	for _, a := range fd.Arguments {
		f.Args = append(f.Args, &inputValue{
			Name:         a.Name,
			Description:  optString(a.Description),
			Type:         refFromAST(a.Type),
			DefaultValue: valueString(a.DefaultValue),
		})
	}
	if d := fd.Directives.ForName("deprecated"); d != nil {
		f.IsDeprecated = true
		if reason := d.Arguments.ForName("reason"); reason != nil && reason.Value != nil {
			f.DeprecationReason = &reason.Value.Raw
		}
	}
	return f
}

func refFromAST(t *ast.Type) *typeRef {
	if t == nil {
		return nil
	}
	var r *typeRef
	if t.Elem != nil {
		r = &typeRef{Kind: KindList, OfType: refFromAST(t.Elem)}
	} else {
		r = namedTypeRef(t.NamedType)
	}
	if t.NonNull {
		r = &typeRef{Kind: KindNonNull, OfType: r}
	}
	return r
}

func namedTypeRef(name string) *typeRef {
	return &typeRef{Name: &name}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueString(v *ast.Value) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// SDL renders the schema as GraphQL SDL. Built-in scalars are omitted and
// types are emitted in name order, so the output is stable.
func (s *Schema) SDL() string {
	doc := &ast.SchemaDocument{}

	if s.query != "Query" || (s.mutation != "" && s.mutation != "Mutation") ||
		(s.subscription != "" && s.subscription != "Subscription") {
		def := &ast.SchemaDefinition{}
		for _, root := range []struct {
			op   ast.Operation
			name string
		}{{ast.Query, s.query}, {ast.Mutation, s.mutation}, {ast.Subscription, s.subscription}} {
			if root.name != "" {
				def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: root.op, Type: root.name})
			}
		}
		doc.Schema = append(doc.Schema, def)
	}

	for _, name := range s.TypeNames() {
		t := s.types[name]
		if t.Kind == KindScalar && IsBuiltinScalar(name) {
			continue
		}
		doc.Definitions = append(doc.Definitions, definitionToAST(t))
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("  ")).FormatSchemaDocument(doc)
	return buf.String()
}

func definitionToAST(t *Type) *ast.Definition {
	def := &ast.Definition{
		Kind:        ast.DefinitionKind(t.Kind),
		Name:        t.Name,
		Description: t.Description,
		Interfaces:  t.Interfaces,
	}
	switch t.Kind {
	case KindObject, KindInterface:
		for _, f := range t.Fields {
			fd := &ast.FieldDefinition{Name: f.Name, Description: f.Description, Type: refToAST(f.Type)}
			for _, a := range f.Args {
				fd.Arguments = append(fd.Arguments, &ast.ArgumentDefinition{
					Name:         a.Name,
					Description:  a.Description,
					Type:         refToAST(a.Type),
					DefaultValue: rawValue(a.DefaultValue),
				})
			}
			if f.IsDeprecated {
				d := &ast.Directive{Name: "deprecated"}
				if f.DeprecationReason != "" {
					d.Arguments = ast.ArgumentList{{
						Name:  "reason",
						Value: &ast.Value{Kind: ast.StringValue, Raw: f.DeprecationReason},
					}}
				}
				fd.Directives = append(fd.Directives, d)
			}
			def.Fields = append(def.Fields, fd)
		}
	case KindUnion:
		def.Types = t.PossibleTypes
	case KindEnum:
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{Name: v})
		}
	case KindInputObject:
		for _, iv := range t.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:         iv.Name,
				Description:  iv.Description,
				Type:         refToAST(iv.Type),
				DefaultValue: rawValue(iv.DefaultValue),
			})
		}
	}
	return def
}

// AST converts the reference into gqlparser's type notation, as used in
// variable definitions.
func (t *TypeRef) AST() *ast.Type {
	return refToAST(t)
}

func refToAST(t *TypeRef) *ast.Type {
	switch t.Kind {
	case KindNonNull:
		inner := refToAST(t.OfType)
		inner.NonNull = true
		return inner
	case KindList:
		return &ast.Type{Elem: refToAST(t.OfType)}
	default:
		return &ast.Type{NamedType: t.Name}
	}
}

// rawValue wraps an already-printed GraphQL literal. Enum values are
// printed verbatim by the formatter, which is what a literal needs.
func rawValue(s *string) *ast.Value {
	if s == nil {
		return nil
	}
	return &ast.Value{Kind: ast.EnumValue, Raw: *s}
}
