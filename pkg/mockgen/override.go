package mockgen

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Override replaces generated data for a type or a field.
//
// Overrides are keyed "Type.field" (one field) or "Type" (every value of
// that type). For a field the lookup order is "Parent.field", then the
// parent's "Parent" override when it yields a map containing the field,
// then the return type's "Type" override, then structural generation.
// Results are used as-is and are not checked against the schema.
type Override interface {
	Resolve(path string, args map[string]any) (any, error)
}

// Overrides is the override table.
type Overrides map[string]Override

func (o Overrides) get(key string) (Override, bool) {
	if o == nil {
		return nil, false
	}
	ov, ok := o[key]
	return ov, ok
}

// Value is a literal override.
type Value struct {
	V any
}

// Resolve returns the literal.
func (v Value) Resolve(string, map[string]any) (any, error) {
	return v.V, nil
}

// Literal returns a literal override.
func Literal(v any) Override {
	return Value{V: v}
}

// Func is a function override. It receives the dotted response path and
// the field arguments.
type Func func(path string, args map[string]any) any

// Resolve calls the function.
func (f Func) Resolve(path string, args map[string]any) (any, error) {
	return f(path, args), nil
}

// Expr is an override written as an expr-lang expression. The expression
// sees path (string), args (map) and seed (int).
type Expr struct {
	Source  string
	seed    int
	program *vm.Program
}

func exprEnv(path string, args map[string]any, seed int) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"path": path,
		"args": args,
		"seed": seed,
	}
}

// CompileExpr compiles an expression override.
func CompileExpr(source string, seed int64) (*Expr, error) {
	program, err := expr.Compile(source, expr.Env(exprEnv("", nil, 0)))
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", source, err)
	}
	return &Expr{Source: source, seed: int(seed), program: program}, nil
}

// Resolve evaluates the expression.
func (e *Expr) Resolve(path string, args map[string]any) (any, error) {
	out, err := expr.Run(e.program, exprEnv(path, args, e.seed))
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", e.Source, err)
	}
	return out, nil
}
