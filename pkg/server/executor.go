package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/getmockd/qiufen/pkg/logging"
	"github.com/getmockd/qiufen/pkg/mockgen"
	"github.com/getmockd/qiufen/pkg/operation"
	"github.com/getmockd/qiufen/pkg/schema"
)

// Executor answers GraphQL requests with generated data. It holds only
// read-only state and is safe for concurrent use.
type Executor struct {
	schema  *schema.Schema
	gen     *mockgen.Generator
	catalog *operation.Catalog
	intro   *introspector
	log     *slog.Logger
}

// NewExecutor creates an executor over gen's schema. Operations in catalog
// can be run by name with an empty query, and its fragments are available
// to every request.
func NewExecutor(gen *mockgen.Generator, catalog *operation.Catalog, log *slog.Logger) (*Executor, error) {
	if log == nil {
		log = logging.Nop()
	}
	if catalog == nil {
		catalog = operation.Parse()
	}
	intro, err := newIntrospector(gen.Schema())
	if err != nil {
		return nil, err
	}
	return &Executor{
		schema:  gen.Schema(),
		gen:     gen,
		catalog: catalog,
		intro:   intro,
		log:     log,
	}, nil
}

// Catalog returns the operation catalog.
func (e *Executor) Catalog() *operation.Catalog {
	return e.catalog
}

// prepared is a request resolved to one operation against the schema.
type prepared struct {
	op        *ast.OperationDefinition
	kind      schema.OperationKind
	root      *schema.Type
	fragments ast.FragmentDefinitionList
	vars      map[string]interface{}
}

// Execute runs req once. Every failure ends up in the returned envelope;
// Execute never panics.
func (e *Executor) Execute(ctx context.Context, req *Request) *Response {
	return e.execute(ctx, req, 0)
}

func (e *Executor) execute(_ context.Context, req *Request, salt uint64) (resp *Response) {
	c := &collector{}
	var data interface{}
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("panic while executing request", "panic", p, "stack", string(debug.Stack()))
			data = nil
			c.add(fmt.Errorf("internal error: %v", p))
		}
		resp = c.response(data)
	}()

	p, err := e.prepare(req)
	if err != nil {
		c.add(err)
		return
	}
	data = e.run(p, salt, c)
	return
}

// prepare parses the request and picks the operation to run.
func (e *Executor) prepare(req *Request) (*prepared, error) {
	if req == nil {
		return nil, errors.New("query is required")
	}

	var doc *ast.QueryDocument
	if req.Query == "" {
		rec := e.catalog.Operation(req.OperationName)
		if rec == nil {
			if req.OperationName == "" {
				return nil, errors.New("query is required")
			}
			return nil, &UnknownOperationError{Name: req.OperationName}
		}
		doc = &ast.QueryDocument{Operations: ast.OperationList{rec.Operation}}
	} else {
		parsed, err := parser.ParseQuery(&ast.Source{Name: "request", Input: req.Query})
		if err != nil {
			return nil, err
		}
		doc = parsed
	}

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		return nil, err
	}

	kind := operationKind(op.Operation)
	root := e.schema.Root(kind)
	if root == nil {
		return nil, &UnsupportedOperationError{Kind: string(kind)}
	}

	fragments := doc.Fragments
	for _, frag := range e.catalog.FragmentDefinitions(op.SelectionSet) {
		if doc.Fragments.ForName(frag.Name) == nil {
			fragments = append(fragments, frag)
		}
	}
	for _, own := range doc.Fragments {
		for _, frag := range e.catalog.FragmentDefinitions(own.SelectionSet) {
			if fragments.ForName(frag.Name) == nil {
				fragments = append(fragments, frag)
			}
		}
	}

	return &prepared{
		op:        op,
		kind:      kind,
		root:      root,
		fragments: fragments,
		vars:      coerceVariables(op, req.Variables),
	}, nil
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		if op := doc.Operations.ForName(name); op != nil {
			return op, nil
		}
		return nil, &UnknownOperationError{Name: name}
	}
	switch len(doc.Operations) {
	case 0:
		return nil, errors.New("no operation found in query")
	case 1:
		return doc.Operations[0], nil
	}
	names := make([]string, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		if op.Name == "" {
			names = append(names, "<anonymous>")
			continue
		}
		names = append(names, op.Name)
	}
	return nil, &AmbiguousOperationError{Operations: names}
}

func operationKind(op ast.Operation) schema.OperationKind {
	switch op {
	case ast.Mutation:
		return schema.Mutation
	case ast.Subscription:
		return schema.Subscription
	}
	return schema.Query
}

// coerceVariables fills in declared defaults for variables the request
// left out.
func coerceVariables(op *ast.OperationDefinition, vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	for _, def := range op.VariableDefinitions {
		if _, ok := out[def.Variable]; ok || def.DefaultValue == nil {
			continue
		}
		if v, err := def.DefaultValue.Value(nil); err == nil {
			out[def.Variable] = v
		}
	}
	return out
}

// run generates the data of a prepared operation. Root __schema and
// __type fields are answered by the introspector; everything else by the
// generator.
func (e *Executor) run(p *prepared, salt uint64, c *collector) interface{} {
	r := e.gen.NewRequest(p.vars, p.fragments).WithSalt(salt)
	defer func() { c.add(r.Errors()...) }()

	if p.kind != schema.Query || !hasIntrospection(p.op.SelectionSet) {
		return r.Object(p.root, p.op.SelectionSet, nil)
	}

	// Field order comes from a scratch request so fragment errors are
	// reported once.
	groups := e.gen.NewRequest(p.vars, p.fragments).CollectFields(p.root.Name, p.op.SelectionSet)
	generated := r.Object(p.root, withoutIntrospection(p.op.SelectionSet), nil)

	out := mockgen.NewObject()
	for _, g := range groups {
		if isIntrospectionField(g.Fields[0].Name) {
			out.Set(g.Key, e.intro.resolve(r, g, p.vars))
			continue
		}
		v, _ := generated.Get(g.Key)
		out.Set(g.Key, v)
	}
	return out
}

func hasIntrospection(sel ast.SelectionSet) bool {
	for _, s := range sel {
		if f, ok := s.(*ast.Field); ok && isIntrospectionField(f.Name) {
			return true
		}
	}
	return false
}

func withoutIntrospection(sel ast.SelectionSet) ast.SelectionSet {
	out := make(ast.SelectionSet, 0, len(sel))
	for _, s := range sel {
		if f, ok := s.(*ast.Field); ok && isIntrospectionField(f.Name) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// collector gathers the errors of one request and turns them into the
// response envelope.
type collector struct {
	errs []Error
}

func (c *collector) add(errs ...error) {
	for _, err := range errs {
		if err != nil {
			c.errs = append(c.errs, toError(err))
		}
	}
}

func (c *collector) response(data interface{}) *Response {
	return &Response{Data: data, Errors: c.errs}
}

func toError(err error) Error {
	out := Error{Message: err.Error()}

	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		out.Message = gqlErr.Message
		for _, loc := range gqlErr.Locations {
			out.Locations = append(out.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
	}
	if path := mockgen.ErrorPath(err); len(path) > 0 {
		out.Path = []interface{}(path)
	}
	if code := errorCode(err); code != "" {
		out.Extensions = map[string]interface{}{"code": code}
	}
	return out
}

// Error codes reported in extensions.code.
const (
	CodeParseFailed          = "GRAPHQL_PARSE_FAILED"
	CodeAmbiguousOperation   = "AMBIGUOUS_OPERATION"
	CodeUnknownOperation     = "OPERATION_NOT_FOUND"
	CodeUnsupportedOperation = "OPERATION_NOT_SUPPORTED"
	CodeSelectionMismatch    = "SELECTION_MISMATCH"
	CodeUndefinedFragment    = "UNDEFINED_FRAGMENT"
	CodeFragmentCycle        = "FRAGMENT_CYCLE"
	CodeOverrideFailed       = "OVERRIDE_FAILED"
	CodeInternal             = "INTERNAL_SERVER_ERROR"
	CodeBadRequest           = "BAD_REQUEST"
)

func errorCode(err error) string {
	var (
		gqlErr      *gqlerror.Error
		ambiguous   *AmbiguousOperationError
		unknown     *UnknownOperationError
		unsupported *UnsupportedOperationError
		mismatch    *mockgen.SelectionMismatchError
		undefined   *mockgen.UndefinedFragmentError
		cycle       *mockgen.FragmentCycleError
		override    *mockgen.OverrideError
		noType      *mockgen.NoPossibleTypeError
	)
	switch {
	case errors.As(err, &gqlErr):
		return CodeParseFailed
	case errors.As(err, &ambiguous):
		return CodeAmbiguousOperation
	case errors.As(err, &unknown):
		return CodeUnknownOperation
	case errors.As(err, &unsupported):
		return CodeUnsupportedOperation
	case errors.As(err, &mismatch):
		return CodeSelectionMismatch
	case errors.As(err, &undefined):
		return CodeUndefinedFragment
	case errors.As(err, &cycle):
		return CodeFragmentCycle
	case errors.As(err, &override):
		return CodeOverrideFailed
	case errors.As(err, &noType):
		return CodeInternal
	}
	return ""
}
