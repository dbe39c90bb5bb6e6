package mockgen

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/getmockd/qiufen/pkg/schema"
)

const testSDL = `
type Query {
  user(id: ID): User
  users: [User!]!
  node: Node
  search: [SearchResult!]!
  loop: Loop
  chain: Chain!
}

type User implements Node {
  id: ID!
  name: String
  age: Int
  score: Float
  active: Boolean
  role: Role!
  birthday: Date
  pet: Pet
  friends: [User!]!
}

type Pet {
  name: String
  legs: Int
}

type Post implements Node {
  id: ID!
  title: String!
}

interface Node {
  id: ID!
}

union SearchResult = Post | User

type Loop {
  self: Loop
  selves: [Loop!]!
  label: String
}

type Chain {
  next: Chain!
  items: [Chain!]!
}

enum Role {
  ADMIN
  MEMBER
}

scalar Date
`

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.ParseSDL(testSDL)
	require.NoError(t, err)
	return s
}

// parseOp returns the selection set of the first operation and all
// fragments of query.
func parseOp(t *testing.T, query string) (ast.SelectionSet, ast.FragmentDefinitionList) {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)
	require.NotEmpty(t, doc.Operations)
	return doc.Operations[0].SelectionSet, doc.Fragments
}

func generateQuery(t *testing.T, g *Generator, query string, vars map[string]any) (*Object, error) {
	t.Helper()
	sel, frags := parseOp(t, query)
	r := g.NewRequest(vars, frags)
	obj := r.Object(g.Schema().Root(schema.Query), sel, nil)
	return obj, r.Err()
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestGenerate_SelectedFieldsOnly(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g, `{ user { id name } }`, nil)
	require.NoError(t, err)

	user, ok := obj.Get("user")
	require.True(t, ok)
	u := user.(*Object)
	assert.Equal(t, []string{"id", "name"}, u.Keys())

	id, _ := u.Get("id")
	assert.NotEmpty(t, id)
	name, _ := u.Get("name")
	assert.IsType(t, "", name)
	_, hasPet := u.Get("pet")
	assert.False(t, hasPet)
}

func TestGenerate_DefaultScalars(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g, `{ user { name age score active role birthday } }`, nil)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"user":{"name":"Hello World","age":42,"score":4.2,"active":true,"role":"ADMIN","birthday":"Date_mock"}}`,
		marshal(t, obj))
}

func TestGenerate_IDsFollowPath(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g, `{ users { id } }`, nil)
	require.NoError(t, err)

	users, _ := obj.Get("users")
	list := users.([]any)
	require.Len(t, list, DefaultListSize)
	first, _ := list[0].(*Object).Get("id")
	second, _ := list[1].(*Object).Get("id")
	assert.NotEqual(t, first, second)

	again, err := generateQuery(t, g, `{ users { id } }`, nil)
	require.NoError(t, err)
	assert.Equal(t, marshal(t, obj), marshal(t, again))
}

func TestGenerate_CycleWithoutSelectionTerminates(t *testing.T) {
	for _, depth := range []int{1, 2, DefaultMaxDepth} {
		g := New(mustSchema(t), WithMaxDepth(depth))

		v, err := g.Generate(schema.Named("Loop"), nil, nil)
		require.NoError(t, err)
		require.NotNil(t, v)

		assert.LessOrEqual(t, nesting(v), depth+1, "depth %d", depth)
		assert.NotEmpty(t, marshal(t, v))
	}
}

func TestGenerate_NonNullPastDepthGuard(t *testing.T) {
	g := New(mustSchema(t), WithMaxDepth(2))

	v, err := g.Generate(schema.NonNullOf(schema.Named("Chain")), nil, nil)
	require.NoError(t, err)

	out := marshal(t, v)
	assert.NotContains(t, out, "null", "non-null positions stay non-null: %s", out)
}

// nesting returns how many objects deep v goes.
func nesting(v any) int {
	switch v := v.(type) {
	case *Object:
		deepest := 0
		for _, k := range v.Keys() {
			child, _ := v.Get(k)
			if n := nesting(child); n > deepest {
				deepest = n
			}
		}
		return deepest + 1
	case []any:
		deepest := 0
		for _, child := range v {
			if n := nesting(child); n > deepest {
				deepest = n
			}
		}
		return deepest
	}
	return 0
}

func TestGenerate_SeededDeterminism(t *testing.T) {
	s := mustSchema(t)
	query := `{ users { id name age score active role } user { name } }`

	a, err := generateQuery(t, New(s, WithSeed(7)), query, nil)
	require.NoError(t, err)
	b, err := generateQuery(t, New(s, WithSeed(7)), query, nil)
	require.NoError(t, err)
	assert.Equal(t, marshal(t, a), marshal(t, b))

	c, err := generateQuery(t, New(s, WithSeed(8)), query, nil)
	require.NoError(t, err)
	assert.NotEqual(t, marshal(t, a), marshal(t, c))

	for _, ref := range []*schema.TypeRef{schema.Named("Int"), schema.Named("String"), schema.Named("ID"), schema.Named("Role")} {
		first, err := New(s, WithSeed(99)).Generate(ref, nil, Path{"x"})
		require.NoError(t, err)
		second, err := New(s, WithSeed(99)).Generate(ref, nil, Path{"x"})
		require.NoError(t, err)
		assert.Equal(t, marshal(t, first), marshal(t, second), ref.String())
	}
}

func TestGenerate_SeededEnumIsDeclaredValue(t *testing.T) {
	g := New(mustSchema(t), WithSeed(3))
	for i := 0; i < 20; i++ {
		v, err := g.Generate(schema.Named("Role"), nil, Path{"role", i})
		require.NoError(t, err)
		assert.Contains(t, []any{"ADMIN", "MEMBER"}, v)
	}
}

func TestGenerate_ListSize(t *testing.T) {
	s := mustSchema(t)

	obj, err := generateQuery(t, New(s, WithListSize(0)), `{ users { id } }`, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[]}`, marshal(t, obj))

	obj, err = generateQuery(t, New(s, WithListSize(4)), `{ users { id } }`, nil)
	require.NoError(t, err)
	users, _ := obj.Get("users")
	assert.Len(t, users, 4)
}

func TestGenerate_AliasesAndDirectives(t *testing.T) {
	g := New(mustSchema(t))

	query := `query Q($withAge: Boolean!, $skipName: Boolean!) {
  me: user {
    handle: name @skip(if: $skipName)
    age @include(if: $withAge)
    active @include(if: false)
    ...Extra
  }
}
fragment Extra on User { role }`

	obj, err := generateQuery(t, g, query, map[string]any{"withAge": true, "skipName": true})
	require.NoError(t, err)
	assert.Equal(t, `{"me":{"age":42,"role":"ADMIN"}}`, marshal(t, obj))

	obj, err = generateQuery(t, g, query, map[string]any{"withAge": false, "skipName": false})
	require.NoError(t, err)
	assert.Equal(t, `{"me":{"handle":"Hello World","role":"ADMIN"}}`, marshal(t, obj))
}

func TestGenerate_AbstractTypes(t *testing.T) {
	s := mustSchema(t)

	query := `{
  search { __typename ... on Post { title } ... on User { name } }
  node { __typename id }
}`
	obj, err := generateQuery(t, New(s, WithListSize(1)), query, nil)
	require.NoError(t, err)

	search, _ := obj.Get("search")
	assert.Equal(t, `[{"__typename":"Post","title":"Hello World"}]`, marshal(t, search))
	node, _ := obj.Get("node")
	typename, _ := node.(*Object).Get("__typename")
	assert.Equal(t, "User", typename, "first declared implementor")

	picked := New(s, WithListSize(1), WithPossibleTypes(map[string]string{"SearchResult": "User", "Node": "Ghost"}))
	obj, err = generateQuery(t, picked, query, nil)
	require.NoError(t, err)
	search, _ = obj.Get("search")
	assert.Equal(t, `[{"__typename":"User","name":"Hello World"}]`, marshal(t, search))
	node, _ = obj.Get("node")
	typename, _ = node.(*Object).Get("__typename")
	assert.Equal(t, "User", typename, "invalid pick falls back to the first declared type")
}

func TestGenerate_SelectionMismatch(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g, `{ user { id bogus name } }`, nil)
	require.Error(t, err)

	var mismatch *SelectionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "User", mismatch.Type)
	assert.Equal(t, "bogus", mismatch.Field)
	assert.Equal(t, Path{"user", "bogus"}, mismatch.Path)
	assert.Equal(t, Path{"user", "bogus"}, ErrorPath(err))

	user, _ := obj.Get("user")
	out := marshal(t, user)
	assert.Contains(t, out, `"bogus":null`)
	assert.Contains(t, out, `"name":"Hello World"`)
}

func TestGenerate_UndefinedFragment(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g, `{ user { id ...Missing } }`, nil)
	var undefined *UndefinedFragmentError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, "Missing", undefined.Name)

	user, _ := obj.Get("user")
	assert.Equal(t, 1, user.(*Object).Len())
}

func TestGenerate_FragmentCycle(t *testing.T) {
	g := New(mustSchema(t))

	obj, err := generateQuery(t, g,
		`{ loop { label ...L } } fragment L on Loop { self { ...M } } fragment M on Loop { label ...L }`, nil)
	var cycle *FragmentCycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, "L", cycle.Name)
	assert.Equal(t, Path{"loop"}, cycle.Path)

	loop, _ := obj.Get("loop")
	assert.Equal(t, []string{"label"}, loop.(*Object).Keys())

	_, frags := parseOp(t, `{ a } fragment A on Loop { self { ...A } } fragment B on Loop { ...C } fragment C on Loop { label }`)
	r := g.NewRequest(nil, frags)
	assert.Equal(t, map[string]bool{"A": true}, r.cyclic)
}

func TestGenerate_OverridePrecedence(t *testing.T) {
	t.Run("field override beats return type override", func(t *testing.T) {
		g := New(mustSchema(t), WithOverrides(Overrides{
			"User.name": Literal("Ada"),
			"String":    Literal("any string"),
		}))
		obj, err := generateQuery(t, g, `{ user { name pet { name } } }`, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":{"name":"Ada","pet":{"name":"any string"}}}`, marshal(t, obj))
	})

	t.Run("field override beats parent type override", func(t *testing.T) {
		g := New(mustSchema(t), WithOverrides(Overrides{
			"User.name": Literal("Ada"),
			"User":      Literal(map[string]any{"name": "From type", "age": 7}),
		}))
		obj, err := generateQuery(t, g, `{ user { name age active } }`, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":{"name":"Ada","age":7,"active":true}}`, marshal(t, obj))
	})

	t.Run("type override beats structural generation", func(t *testing.T) {
		g := New(mustSchema(t), WithOverrides(Overrides{
			"Int": Literal(7),
			"Pet": Literal(map[string]any{"name": "Rex"}),
		}))
		obj, err := generateQuery(t, g, `{ user { age pet { name legs } } }`, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"user":{"age":7,"pet":{"name":"Rex","legs":7}}}`, marshal(t, obj))
	})

	t.Run("function override receives path and arguments", func(t *testing.T) {
		var paths []string
		var gotArgs map[string]any
		g := New(mustSchema(t), WithOverrides(Overrides{
			"Query.user": Func(func(path string, args map[string]any) any {
				gotArgs = args
				return map[string]any{"name": path}
			}),
			"User.name": Func(func(path string, _ map[string]any) any {
				paths = append(paths, path)
				return path
			}),
		}))
		obj, err := generateQuery(t, g, `{ user(id: "u1") { name } users { name } }`, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "u1"}, gotArgs)
		assert.Equal(t, []string{"users.0.name", "users.1.name"}, paths)
		assert.JSONEq(t,
			`{"user":{"name":"user"},"users":[{"name":"users.0.name"},{"name":"users.1.name"}]}`,
			marshal(t, obj))
	})
}

func TestObject_MarshalKeepsOrder(t *testing.T) {
	o := NewObject()
	o.Set("z", 1)
	o.Set("a", NewObject())
	o.Set("m", []any{"x"})
	o.Set("z", 2)
	assert.Equal(t, `{"z":2,"a":{},"m":["x"]}`, marshal(t, o))

	var nilObj *Object
	assert.Equal(t, "null", marshal(t, nilObj))
}

func TestPath_String(t *testing.T) {
	p := Path{}.Field("users").Index(1).Field("name")
	assert.Equal(t, "users.1.name", p.String())
	assert.Equal(t, Path{"users", 1, "name"}, p)

	base := Path{"a"}
	left := base.Field("b")
	right := base.Field("c")
	assert.Equal(t, "a.b", left.String(), "extending a path never aliases a sibling")
	assert.Equal(t, "a.c", right.String())
}
