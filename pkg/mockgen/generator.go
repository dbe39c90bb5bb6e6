package mockgen

import (
	"errors"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/getmockd/qiufen/pkg/logging"
	"github.com/getmockd/qiufen/pkg/schema"
)

// Defaults for Generator options.
const (
	DefaultListSize = 2
	DefaultMaxDepth = 5
)

// Generator synthesizes values that conform to a schema. A Generator is
// immutable after New and safe for concurrent use; per-call state lives in
// a Request.
type Generator struct {
	schema        *schema.Schema
	listSize      int
	maxDepth      int
	seed          *int64
	possibleTypes map[string]string
	overrides     Overrides
	log           *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithListSize sets how many elements generated lists have. Zero yields
// empty lists; negative values are ignored.
func WithListSize(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.listSize = n
		}
	}
}

// WithMaxDepth bounds recursion when no selection set is given.
func WithMaxDepth(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxDepth = n
		}
	}
}

// WithSeed switches scalar and enum generation to seeded pseudo-random
// values.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.seed = &seed }
}

// WithPossibleTypes chooses the concrete type generated for abstract types,
// keyed by interface or union name.
func WithPossibleTypes(m map[string]string) Option {
	return func(g *Generator) { g.possibleTypes = m }
}

// WithOverrides sets the override table.
func WithOverrides(o Overrides) Option {
	return func(g *Generator) { g.overrides = o }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a Generator for s.
func New(s *schema.Schema, opts ...Option) *Generator {
	g := &Generator{
		schema:   s,
		listSize: DefaultListSize,
		maxDepth: DefaultMaxDepth,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Schema returns the schema values are generated for.
func (g *Generator) Schema() *schema.Schema {
	return g.schema
}

// Generate produces a value for t. With a selection set only selected
// fields are generated; without one every field is generated down to the
// maximum depth. Errors for individual fields are joined into the returned
// error while the rest of the value is still produced.
func (g *Generator) Generate(t *schema.TypeRef, sel ast.SelectionSet, path Path) (any, error) {
	r := g.NewRequest(nil, nil)
	v := r.Generate(t, sel, path)
	return v, r.Err()
}

// Request carries the state of one generation pass: variables, the
// fragments the selection may spread, and the errors collected so far.
type Request struct {
	g         *Generator
	vars      map[string]any
	fragments map[string]*ast.FragmentDefinition
	cyclic    map[string]bool
	salt      uint64
	errs      []error
}

// NewRequest starts a generation pass.
func (g *Generator) NewRequest(vars map[string]any, fragments ast.FragmentDefinitionList) *Request {
	r := &Request{
		g:         g,
		vars:      vars,
		fragments: make(map[string]*ast.FragmentDefinition, len(fragments)),
	}
	for _, f := range fragments {
		if _, ok := r.fragments[f.Name]; !ok {
			r.fragments[f.Name] = f
		}
	}
	r.cyclic = fragmentCycles(r.fragments)
	return r
}

// WithSalt varies seeded values between otherwise identical passes, such
// as consecutive subscription events. It has no effect without a seed.
func (r *Request) WithSalt(salt uint64) *Request {
	r.salt = salt
	return r
}

// Errors returns the errors collected so far.
func (r *Request) Errors() []error {
	return r.errs
}

// Err joins the collected errors, or returns nil.
func (r *Request) Err() error {
	return errors.Join(r.errs...)
}

func (r *Request) fail(err error) {
	r.errs = append(r.errs, err)
}

// Generate produces a value for t at path.
func (r *Request) Generate(t *schema.TypeRef, sel ast.SelectionSet, path Path) any {
	return r.value(t, sel, path, len(path), nil)
}

// Object generates an object of type t for the given selection. Selected
// fields missing from t are reported as *SelectionMismatchError and set to
// null; their siblings are still generated.
func (r *Request) Object(t *schema.Type, sel ast.SelectionSet, path Path) *Object {
	base := r.typeOverride(t, path, nil)
	return r.object(t, sel, path, len(path), base)
}

func (r *Request) value(ref *schema.TypeRef, sel ast.SelectionSet, path Path, depth int, args map[string]any) any {
	switch ref.Kind {
	case schema.KindNonNull:
		v := r.value(ref.OfType, sel, path, depth, args)
		if v == nil {
			if _, overridden := r.g.overrides.get(ref.NamedType()); !overridden {
				v = r.zero(ref.OfType)
			}
		}
		return v
	case schema.KindList:
		if sel == nil && depth > r.g.maxDepth && r.isComposite(ref) {
			return nil
		}
		list := make([]any, r.g.listSize)
		for i := range list {
			list[i] = r.value(ref.OfType, sel, path.Index(i), depth, args)
		}
		return list
	}

	t := r.g.schema.Resolve(ref)
	if t == nil {
		return nil
	}

	if ov, ok := r.g.overrides.get(t.Name); ok {
		v, err := ov.Resolve(path.String(), args)
		if err != nil {
			r.fail(&OverrideError{Key: t.Name, Path: path, Err: err})
			return nil
		}
		if m, isMap := v.(map[string]any); isMap && t.IsComposite() {
			return r.composite(t, sel, path, depth, m)
		}
		return v
	}

	switch t.Kind {
	case schema.KindScalar:
		return r.g.scalar(t.Name, path, r.salt)
	case schema.KindEnum:
		return r.g.enum(t, path, r.salt)
	case schema.KindObject, schema.KindInterface, schema.KindUnion:
		if sel == nil && depth > r.g.maxDepth {
			return nil
		}
		return r.composite(t, sel, path, depth, nil)
	}
	return nil
}

// composite resolves abstract types to a concrete object type and
// generates it. base holds field values supplied by a type override.
func (r *Request) composite(t *schema.Type, sel ast.SelectionSet, path Path, depth int, base map[string]any) any {
	concrete := t
	if t.IsAbstract() {
		name := ""
		if tn, ok := base["__typename"].(string); ok && r.g.schema.Implements(tn, t.Name) {
			name = tn
		}
		if name == "" {
			name = r.g.possibleType(t.Name)
		}
		concrete = r.g.schema.Type(name)
		if concrete == nil {
			r.fail(&NoPossibleTypeError{Type: t.Name, Path: path})
			return nil
		}
		if base == nil {
			base = r.typeOverride(concrete, path, nil)
		}
	}
	return r.object(concrete, sel, path, depth, base)
}

func (g *Generator) possibleType(abstract string) string {
	if name, ok := g.possibleTypes[abstract]; ok && name != abstract && g.schema.Implements(name, abstract) {
		return name
	}
	if candidates := g.schema.PossibleTypes(abstract); len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// typeOverride evaluates the "Type" override of an object type when it
// yields a map of field values.
func (r *Request) typeOverride(t *schema.Type, path Path, args map[string]any) map[string]any {
	ov, ok := r.g.overrides.get(t.Name)
	if !ok {
		return nil
	}
	v, err := ov.Resolve(path.String(), args)
	if err != nil {
		r.fail(&OverrideError{Key: t.Name, Path: path, Err: err})
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func (r *Request) object(t *schema.Type, sel ast.SelectionSet, path Path, depth int, base map[string]any) *Object {
	obj := NewObject()

	if sel == nil {
		for _, fd := range t.Fields {
			fp := path.Field(fd.Name)
			obj.Set(fd.Name, r.field(t, fd, nil, nil, fp, depth+1, base))
		}
		return obj
	}

	for _, group := range r.collectFields(t.Name, sel, path) {
		fp := path.Field(group.Key)
		first := group.Fields[0]
		if first.Name == "__typename" {
			obj.Set(group.Key, t.Name)
			continue
		}
		fd := t.Field(first.Name)
		if fd == nil {
			r.fail(&SelectionMismatchError{Type: t.Name, Field: first.Name, Path: fp})
			obj.Set(group.Key, nil)
			continue
		}
		obj.Set(group.Key, r.field(t, fd, first, group.SelectionSet(), fp, depth+1, base))
	}
	return obj
}

func (r *Request) field(parent *schema.Type, fd *schema.Field, af *ast.Field, sel ast.SelectionSet, path Path, depth int, base map[string]any) any {
	args := r.arguments(af)

	key := parent.Name + "." + fd.Name
	if ov, ok := r.g.overrides.get(key); ok {
		v, err := ov.Resolve(path.String(), args)
		if err != nil {
			r.fail(&OverrideError{Key: key, Path: path, Err: err})
			return nil
		}
		return v
	}
	if v, ok := base[fd.Name]; ok {
		return v
	}
	return r.value(fd.Type, sel, path, depth, args)
}

func (r *Request) arguments(af *ast.Field) map[string]any {
	args := make(map[string]any)
	if af == nil {
		return args
	}
	for _, a := range af.Arguments {
		if a.Value == nil {
			continue
		}
		v, err := a.Value.Value(r.vars)
		if err != nil {
			r.g.log.Debug("skipping unresolvable argument", "field", af.Name, "argument", a.Name, "error", err)
			continue
		}
		args[a.Name] = v
	}
	return args
}

// zero is the placeholder for a non-null position that structural
// generation left empty, which only happens past the depth guard.
func (r *Request) zero(ref *schema.TypeRef) any {
	if ref.Kind == schema.KindNonNull {
		return r.zero(ref.OfType)
	}
	if ref.Kind == schema.KindList {
		return []any{}
	}
	if r.isComposite(ref) {
		return NewObject()
	}
	return nil
}

func (r *Request) isComposite(ref *schema.TypeRef) bool {
	t := r.g.schema.Resolve(ref)
	return t != nil && t.IsComposite()
}
