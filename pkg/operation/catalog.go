package operation

import (
	"errors"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Kind classifies a top-level definition.
type Kind string

// Definition kinds.
const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
	KindFragment     Kind = "fragment"
)

// Document is one raw GraphQL source, usually the content of a file.
type Document struct {
	Name   string
	Source string
}

// Record is a single top-level definition taken from a Document.
// Exactly one of Operation and Fragment is set.
type Record struct {
	Name     string
	Kind     Kind
	Document string
	// Source is the definition's text as written in the document.
	Source string

	Operation *ast.OperationDefinition
	Fragment  *ast.FragmentDefinition
}

// Catalog groups the definitions of a batch of documents by kind.
// Within each kind, records keep their source order (document order first,
// then position within the document).
type Catalog struct {
	Queries       []*Record
	Mutations     []*Record
	Subscriptions []*Record
	Fragments     []*Record

	// Errors holds per-document failures (*ParseError) and dangling
	// fragment spreads (*UnresolvedFragmentError). None of them stops the
	// rest of the batch from being cataloged.
	Errors []error

	fragments  map[string]*Record
	operations map[string]*Record
}

// Parse catalogs the given documents. A document with a syntax error
// contributes a *ParseError and no records; the other documents are
// cataloged normally.
func Parse(docs ...Document) *Catalog {
	c := &Catalog{
		fragments:  make(map[string]*Record),
		operations: make(map[string]*Record),
	}

	for _, doc := range docs {
		qd, err := parser.ParseQuery(&ast.Source{Name: doc.Name, Input: doc.Source})
		if err != nil {
			c.Errors = append(c.Errors, newParseError(doc.Name, err))
			continue
		}
		for _, rec := range split(doc, qd) {
			c.add(rec)
		}
	}

	c.checkSpreads()
	return c
}

func (c *Catalog) add(rec *Record) {
	switch rec.Kind {
	case KindQuery:
		c.Queries = append(c.Queries, rec)
	case KindMutation:
		c.Mutations = append(c.Mutations, rec)
	case KindSubscription:
		c.Subscriptions = append(c.Subscriptions, rec)
	case KindFragment:
		c.Fragments = append(c.Fragments, rec)
		if _, ok := c.fragments[rec.Name]; !ok {
			c.fragments[rec.Name] = rec
		}
		return
	}
	if rec.Name != "" {
		if _, ok := c.operations[rec.Name]; !ok {
			c.operations[rec.Name] = rec
		}
	}
}

// split turns a parsed document into records in source order, slicing each
// definition's text from its start offset up to the next definition.
// Whole-line comments after the definition belong to whatever follows and
// are dropped. gqlparser positions count runes, not bytes.
func split(doc Document, qd *ast.QueryDocument) []*Record {
	src := []rune(doc.Source)
	recs := make([]*Record, 0, len(qd.Operations)+len(qd.Fragments))
	starts := make([]int, 0, cap(recs))

	for _, op := range qd.Operations {
		recs = append(recs, &Record{
			Name:      op.Name,
			Kind:      Kind(op.Operation),
			Document:  doc.Name,
			Operation: op,
		})
		starts = append(starts, offset(op.Position))
	}
	for _, frag := range qd.Fragments {
		recs = append(recs, &Record{
			Name:     frag.Name,
			Kind:     KindFragment,
			Document: doc.Name,
			Fragment: frag,
		})
		starts = append(starts, offset(frag.Position))
	}

	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return starts[idx[a]] < starts[idx[b]] })

	ordered := make([]*Record, len(recs))
	for i, j := range idx {
		end := len(src)
		if i+1 < len(idx) && starts[idx[i+1]] < end {
			end = starts[idx[i+1]]
		}
		start := starts[j]
		if start > end {
			start = end
		}
		recs[j].Source = trimTrailingComments(string(src[start:end]))
		ordered[i] = recs[j]
	}
	return ordered
}

func trimTrailingComments(text string) string {
	text = strings.TrimSpace(text)
	for {
		i := strings.LastIndexByte(text, '\n')
		if i < 0 || !strings.HasPrefix(strings.TrimSpace(text[i+1:]), "#") {
			return text
		}
		text = strings.TrimSpace(text[:i])
	}
}

func offset(pos *ast.Position) int {
	if pos == nil {
		return 0
	}
	return pos.Start
}

// checkSpreads records every fragment spread whose target is not defined
// anywhere in the catalog.
func (c *Catalog) checkSpreads() {
	for _, rec := range c.Records() {
		var set ast.SelectionSet
		if rec.Operation != nil {
			set = rec.Operation.SelectionSet
		} else {
			set = rec.Fragment.SelectionSet
		}
		seen := make(map[string]bool)
		walkSpreads(set, func(spread *ast.FragmentSpread) {
			if seen[spread.Name] {
				return
			}
			seen[spread.Name] = true
			if _, ok := c.fragments[spread.Name]; !ok {
				c.Errors = append(c.Errors, &UnresolvedFragmentError{
					Document:   rec.Document,
					Definition: rec.Name,
					Fragment:   spread.Name,
				})
			}
		})
	}
}

func walkSpreads(set ast.SelectionSet, fn func(*ast.FragmentSpread)) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			walkSpreads(s.SelectionSet, fn)
		case *ast.InlineFragment:
			walkSpreads(s.SelectionSet, fn)
		case *ast.FragmentSpread:
			fn(s)
		}
	}
}

// Records returns every record: queries, mutations, subscriptions, then
// fragments, each group in source order.
func (c *Catalog) Records() []*Record {
	out := make([]*Record, 0, len(c.Queries)+len(c.Mutations)+len(c.Subscriptions)+len(c.Fragments))
	out = append(out, c.Queries...)
	out = append(out, c.Mutations...)
	out = append(out, c.Subscriptions...)
	out = append(out, c.Fragments...)
	return out
}

// Operations returns queries, mutations and subscriptions in display order.
func (c *Catalog) Operations() []*Record {
	out := make([]*Record, 0, len(c.Queries)+len(c.Mutations)+len(c.Subscriptions))
	out = append(out, c.Queries...)
	out = append(out, c.Mutations...)
	return append(out, c.Subscriptions...)
}

// Operation returns the named operation, or nil. When two documents define
// the same name the first one wins.
func (c *Catalog) Operation(name string) *Record {
	if c == nil {
		return nil
	}
	return c.operations[name]
}

// Fragment returns the named fragment definition, or nil.
func (c *Catalog) Fragment(name string) *ast.FragmentDefinition {
	if c == nil {
		return nil
	}
	if rec, ok := c.fragments[name]; ok {
		return rec.Fragment
	}
	return nil
}

// FragmentDefinitions returns the fragments reachable from sel, following
// nested spreads. Unknown names are skipped.
func (c *Catalog) FragmentDefinitions(sel ast.SelectionSet) ast.FragmentDefinitionList {
	var out ast.FragmentDefinitionList
	seen := make(map[string]bool)
	var visit func(ast.SelectionSet)
	visit = func(set ast.SelectionSet) {
		walkSpreads(set, func(spread *ast.FragmentSpread) {
			if seen[spread.Name] {
				return
			}
			seen[spread.Name] = true
			if frag := c.Fragment(spread.Name); frag != nil {
				out = append(out, frag)
				visit(frag.SelectionSet)
			}
		})
	}
	visit(sel)
	return out
}

// Len returns the number of cataloged records.
func (c *Catalog) Len() int {
	return len(c.Queries) + len(c.Mutations) + len(c.Subscriptions) + len(c.Fragments)
}

// Entry is one item of the documentation artifact.
type Entry struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	Document   string `json:"document,omitempty"`
	SourceText string `json:"sourceText"`
	Printed    string `json:"printed"`
}

// Entries returns the documentation artifact: every record in display
// order with its source text and printed form.
func (c *Catalog) Entries() []Entry {
	recs := c.Records()
	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, Entry{
			Name:       rec.Name,
			Kind:       rec.Kind,
			Document:   rec.Document,
			SourceText: rec.Source,
			Printed:    Print(rec),
		})
	}
	return entries
}

func newParseError(doc string, err error) *ParseError {
	pe := &ParseError{Document: doc, Message: err.Error(), Err: err}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		pe.Message = gqlErr.Message
		if len(gqlErr.Locations) > 0 {
			pe.Line = gqlErr.Locations[0].Line
			pe.Column = gqlErr.Locations[0].Column
		}
	}
	return pe
}
