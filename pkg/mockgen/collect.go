package mockgen

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// FieldGroup is the set of fields that share one response key. Their
// selection sets are merged.
type FieldGroup struct {
	Key    string
	Fields []*ast.Field
}

// SelectionSet returns the merged sub-selection of the group.
func (g FieldGroup) SelectionSet() ast.SelectionSet {
	if len(g.Fields) == 1 {
		return g.Fields[0].SelectionSet
	}
	var merged ast.SelectionSet
	for _, f := range g.Fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// CollectFields flattens sel for the concrete type typeName: fragments
// whose type condition applies are inlined, @skip and @include are
// evaluated against the request variables, and fields are grouped by
// response key in first-seen order.
func (r *Request) CollectFields(typeName string, sel ast.SelectionSet) []FieldGroup {
	return r.collectFields(typeName, sel, nil)
}

func (r *Request) collectFields(typeName string, sel ast.SelectionSet, path Path) []FieldGroup {
	var groups []FieldGroup
	index := make(map[string]int)
	visited := make(map[string]bool)

	var walk func(ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, s := range set {
			switch s := s.(type) {
			case *ast.Field:
				if !r.included(s.Directives) {
					continue
				}
				key := s.Alias
				if key == "" {
					key = s.Name
				}
				if i, ok := index[key]; ok {
					groups[i].Fields = append(groups[i].Fields, s)
					continue
				}
				index[key] = len(groups)
				groups = append(groups, FieldGroup{Key: key, Fields: []*ast.Field{s}})

			case *ast.InlineFragment:
				if !r.included(s.Directives) || !r.applies(typeName, s.TypeCondition) {
					continue
				}
				walk(s.SelectionSet)

			case *ast.FragmentSpread:
				if !r.included(s.Directives) || visited[s.Name] {
					continue
				}
				visited[s.Name] = true
				frag, ok := r.fragments[s.Name]
				if !ok {
					r.fail(&UndefinedFragmentError{Name: s.Name, Path: path})
					continue
				}
				if r.cyclic[s.Name] {
					r.fail(&FragmentCycleError{Name: s.Name, Path: path})
					continue
				}
				if !r.applies(typeName, frag.TypeCondition) {
					continue
				}
				walk(frag.SelectionSet)
			}
		}
	}
	walk(sel)
	return groups
}

// fragmentCycles returns the fragments that spread themselves, directly or
// through other fragments, at any depth of their selection sets.
func fragmentCycles(fragments map[string]*ast.FragmentDefinition) map[string]bool {
	edges := make(map[string][]string, len(fragments))
	for name, frag := range fragments {
		edges[name] = spreads(frag.SelectionSet, nil)
	}

	cyclic := make(map[string]bool)
	for start := range fragments {
		seen := map[string]bool{}
		stack := append([]string(nil), edges[start]...)
		for len(stack) > 0 {
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name == start {
				cyclic[start] = true
				break
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			stack = append(stack, edges[name]...)
		}
	}
	return cyclic
}

// spreads appends the names of every fragment spread in sel, including
// those nested under fields and inline fragments.
func spreads(sel ast.SelectionSet, out []string) []string {
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			out = spreads(s.SelectionSet, out)
		case *ast.InlineFragment:
			out = spreads(s.SelectionSet, out)
		case *ast.FragmentSpread:
			out = append(out, s.Name)
		}
	}
	return out
}

func (r *Request) applies(typeName, condition string) bool {
	return condition == "" || r.g.schema.Implements(typeName, condition)
}

// included evaluates @skip(if:) and @include(if:).
func (r *Request) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil && r.condition(d) {
		return false
	}
	if d := directives.ForName("include"); d != nil && !r.condition(d) {
		return false
	}
	return true
}

func (r *Request) condition(d *ast.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false
	}
	v, err := arg.Value.Value(r.vars)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
