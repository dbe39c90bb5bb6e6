package operation

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getmockd/qiufen/pkg/schema"
)

// DefaultDiscoverDepth is how many object levels Discover expands below a
// root field.
const DefaultDiscoverDepth = 3

// DiscoveredDocument is the document name given to generated operations.
const DiscoveredDocument = "<discovered>"

// DiscoverOptions tunes operation discovery.
type DiscoverOptions struct {
	// Depth bounds how many composite levels are expanded. Defaults to
	// DefaultDiscoverDepth.
	Depth int
}

// Discover generates one operation per root field of the schema: arguments
// become variables and the selection set expands every leaf field down to
// Depth composite levels. Abstract types are selected through __typename
// and one inline fragment per possible type.
//
// Fields with required arguments below the root are left out, since no
// value can be supplied for them.
func Discover(s *schema.Schema, opts DiscoverOptions) *Catalog {
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultDiscoverDepth
	}
	d := &discoverer{schema: s, depth: depth}

	used := make(map[string]bool)
	var printed []string
	for _, kind := range []schema.OperationKind{schema.Query, schema.Mutation, schema.Subscription} {
		root := s.Root(kind)
		if root == nil {
			continue
		}
		for _, f := range root.Fields {
			name := f.Name
			if used[name] {
				name += titleCase.String(string(kind))
			}
			used[name] = true
			printed = append(printed, PrintOperation(d.operation(kind, name, f)))
		}
	}

	if len(printed) == 0 {
		return Parse()
	}
	return Parse(Document{Name: DiscoveredDocument, Source: strings.Join(printed, "\n\n")})
}

var titleCase = cases.Title(language.Und)

type discoverer struct {
	schema *schema.Schema
	depth  int
}

func (d *discoverer) operation(kind schema.OperationKind, name string, f *schema.Field) *ast.OperationDefinition {
	op := &ast.OperationDefinition{Operation: ast.Operation(kind), Name: name}
	field := &ast.Field{Alias: f.Name, Name: f.Name}
	for _, arg := range f.Args {
		op.VariableDefinitions = append(op.VariableDefinitions, &ast.VariableDefinition{
			Variable: arg.Name,
			Type:     arg.Type.AST(),
		})
		field.Arguments = append(field.Arguments, &ast.Argument{
			Name:  arg.Name,
			Value: &ast.Value{Kind: ast.Variable, Raw: arg.Name},
		})
	}
	field.SelectionSet = d.selection(f.Type, 1)
	op.SelectionSet = ast.SelectionSet{field}
	return op
}

func (d *discoverer) selection(ref *schema.TypeRef, level int) ast.SelectionSet {
	t := d.schema.Resolve(ref)
	if t == nil || !t.IsComposite() {
		return nil
	}

	if t.IsAbstract() {
		set := ast.SelectionSet{typename()}
		for _, name := range d.schema.PossibleTypes(t.Name) {
			inner := d.fields(d.schema.Type(name), level)
			if len(inner) == 0 {
				continue
			}
			set = append(set, &ast.InlineFragment{TypeCondition: name, SelectionSet: inner})
		}
		return set
	}

	set := d.fields(t, level)
	if len(set) == 0 {
		set = ast.SelectionSet{typename()}
	}
	return set
}

func (d *discoverer) fields(t *schema.Type, level int) ast.SelectionSet {
	if t == nil {
		return nil
	}
	var set ast.SelectionSet
	for _, f := range t.Fields {
		if requiresArgs(f) {
			continue
		}
		ft := d.schema.Resolve(f.Type)
		if ft == nil {
			continue
		}
		if !ft.IsComposite() {
			set = append(set, &ast.Field{Alias: f.Name, Name: f.Name})
			continue
		}
		if level >= d.depth {
			continue
		}
		set = append(set, &ast.Field{
			Alias:        f.Name,
			Name:         f.Name,
			SelectionSet: d.selection(f.Type, level+1),
		})
	}
	return set
}

func requiresArgs(f *schema.Field) bool {
	for _, a := range f.Args {
		if a.Type.IsNonNull() && a.DefaultValue == nil {
			return true
		}
	}
	return false
}

func typename() *ast.Field {
	return &ast.Field{Alias: "__typename", Name: "__typename"}
}
