package operation

import (
	"bytes"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

const indent = "  "

// Print renders a record in canonical form. The output depends only on the
// AST, so equal ASTs always print to identical bytes.
func Print(rec *Record) string {
	if rec == nil {
		return ""
	}
	switch {
	case rec.Operation != nil:
		return PrintOperation(rec.Operation)
	case rec.Fragment != nil:
		return PrintFragment(rec.Fragment)
	}
	return ""
}

// PrintBatch prints every record and joins them with one blank line, in
// input order.
func PrintBatch(recs []*Record) string {
	parts := make([]string, 0, len(recs))
	for _, rec := range recs {
		parts = append(parts, Print(rec))
	}
	return strings.Join(parts, "\n\n")
}

// PrintOperation renders a single operation definition.
func PrintOperation(op *ast.OperationDefinition) string {
	return format(&ast.QueryDocument{Operations: ast.OperationList{op}})
}

// PrintFragment renders a single fragment definition.
func PrintFragment(frag *ast.FragmentDefinition) string {
	return format(&ast.QueryDocument{Fragments: ast.FragmentDefinitionList{frag}})
}

func format(doc *ast.QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent(indent)).FormatQueryDocument(doc)
	return strings.TrimRight(buf.String(), "\n")
}
