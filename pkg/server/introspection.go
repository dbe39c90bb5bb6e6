package server

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/getmockd/qiufen/pkg/mockgen"
	"github.com/getmockd/qiufen/pkg/schema"
)

// introspector answers __schema and __type from the loaded schema, so
// GraphiQL and schema.Loader can point at the mock server itself.
type introspector struct {
	root  map[string]interface{}
	types map[string]map[string]interface{}
}

func newIntrospector(s *schema.Schema) (*introspector, error) {
	data, err := s.IntrospectionJSON()
	if err != nil {
		return nil, fmt.Errorf("render introspection: %w", err)
	}
	var root map[string]interface{}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode introspection: %w", err)
	}
	root["directives"] = builtinDirectives()

	in := &introspector{root: root, types: make(map[string]map[string]interface{})}
	types, _ := root["types"].([]interface{})
	for _, t := range types {
		if m, ok := t.(map[string]interface{}); ok {
			if name, ok := m["name"].(string); ok {
				in.types[name] = m
			}
		}
	}
	return in, nil
}

func isIntrospectionField(name string) bool {
	return name == "__schema" || name == "__type"
}

// resolve produces the value of a root __schema or __type field.
func (in *introspector) resolve(r *mockgen.Request, group mockgen.FieldGroup, vars map[string]interface{}) interface{} {
	f := group.Fields[0]
	switch f.Name {
	case "__schema":
		return in.project(r, "__Schema", in.root, group.SelectionSet(), vars)
	case "__type":
		name, _ := argument(f, "name", vars).(string)
		t, ok := in.types[name]
		if !ok {
			return nil
		}
		return in.project(r, "__Type", t, group.SelectionSet(), vars)
	}
	return nil
}

// introspectionFieldTypes maps an introspection type and field to the type
// of the field's value, for fields that hold objects.
var introspectionFieldTypes = map[string]map[string]string{
	"__Schema": {
		"types":            "__Type",
		"queryType":        "__Type",
		"mutationType":     "__Type",
		"subscriptionType": "__Type",
		"directives":       "__Directive",
	},
	"__Type": {
		"fields":        "__Field",
		"interfaces":    "__Type",
		"possibleTypes": "__Type",
		"enumValues":    "__EnumValue",
		"inputFields":   "__InputValue",
		"ofType":        "__Type",
	},
	"__Field": {
		"args": "__InputValue",
		"type": "__Type",
	},
	"__InputValue": {
		"type": "__Type",
	},
	"__Directive": {
		"args": "__InputValue",
	},
}

// project applies a selection set to a decoded introspection value.
// Fields absent from the value resolve to null.
func (in *introspector) project(r *mockgen.Request, typeName string, v interface{}, sel ast.SelectionSet, vars map[string]interface{}) interface{} {
	switch v := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = in.project(r, typeName, item, sel, vars)
		}
		return out
	case map[string]interface{}:
		if typeName == "__Type" {
			// A reference by name stands for the full type.
			if name, ok := v["name"].(string); ok {
				if full, ok := in.types[name]; ok {
					v = full
				}
			}
		}
		obj := mockgen.NewObject()
		for _, group := range r.CollectFields(typeName, sel) {
			f := group.Fields[0]
			if f.Name == "__typename" {
				obj.Set(group.Key, typeName)
				continue
			}
			child := v[f.Name]
			if (f.Name == "fields" || f.Name == "enumValues") && !includeDeprecated(f, vars) {
				child = withoutDeprecated(child)
			}
			obj.Set(group.Key, in.project(r, introspectionFieldTypes[typeName][f.Name], child, group.SelectionSet(), vars))
		}
		return obj
	}
	return v
}

func includeDeprecated(f *ast.Field, vars map[string]interface{}) bool {
	b, _ := argument(f, "includeDeprecated", vars).(bool)
	return b
}

func withoutDeprecated(v interface{}) interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return v
	}
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok && m["isDeprecated"] == true {
			continue
		}
		out = append(out, item)
	}
	return out
}

func argument(f *ast.Field, name string, vars map[string]interface{}) interface{} {
	arg := f.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil
	}
	v, err := arg.Value.Value(vars)
	if err != nil {
		return nil
	}
	return v
}

func builtinDirectives() []interface{} {
	nonNullBoolean := map[string]interface{}{
		"kind": "NON_NULL",
		"name": nil,
		"ofType": map[string]interface{}{
			"kind": "SCALAR", "name": "Boolean", "ofType": nil,
		},
	}
	condition := func(name, description string) map[string]interface{} {
		return map[string]interface{}{
			"name":         name,
			"description":  description,
			"locations":    []interface{}{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"},
			"isRepeatable": false,
			"args": []interface{}{map[string]interface{}{
				"name":         "if",
				"description":  nil,
				"type":         nonNullBoolean,
				"defaultValue": nil,
			}},
		}
	}
	return []interface{}{
		condition("include", "Directs the executor to include this field or fragment only when the `if` argument is true."),
		condition("skip", "Directs the executor to skip this field or fragment when the `if` argument is true."),
		map[string]interface{}{
			"name":         "deprecated",
			"description":  "Marks an element of a GraphQL schema as no longer supported.",
			"locations":    []interface{}{"FIELD_DEFINITION", "ARGUMENT_DEFINITION", "INPUT_FIELD_DEFINITION", "ENUM_VALUE"},
			"isRepeatable": false,
			"args": []interface{}{map[string]interface{}{
				"name":         "reason",
				"description":  nil,
				"type":         map[string]interface{}{"kind": "SCALAR", "name": "String", "ofType": nil},
				"defaultValue": `"No longer supported"`,
			}},
		},
	}
}
