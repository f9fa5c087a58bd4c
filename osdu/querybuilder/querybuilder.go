// Package querybuilder constructs GraphQL documents for OSDU service calls.
// Well-known operations come from a hand-written template dictionary with
// alternate shapes for fallback; ad-hoc documents are assembled from an
// operation name, argument list, and selection set, typically derived from
// introspection. Every document is parsed with gqlparser before it is
// handed to the transport.
package querybuilder

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/c360/osdugate/errors"
)

// OperationType distinguishes queries from mutations
type OperationType string

// Supported operation types
const (
	Query    OperationType = "query"
	Mutation OperationType = "mutation"
)

// Argument declares a single operation variable
type Argument struct {
	Name string // variable name without the $ prefix
	Type string // GraphQL type reference, e.g. "String!" or "[ID!]!"
}

// Spec describes an ad-hoc GraphQL operation to build
type Spec struct {
	Type      OperationType
	Name      string     // operation and root field name
	Field     string     // root field when it differs from Name
	Args      []Argument // operation variables, passed through to the root field
	Selection []string   // selection entries; entries may carry nested braces
}

// Build assembles a GraphQL document from a Spec and validates it.
func Build(spec Spec) (string, error) {
	if spec.Name == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("operation name is required"),
			"querybuilder", "Build", "validate spec")
	}

	opType := spec.Type
	if opType == "" {
		opType = Query
	}

	field := spec.Field
	if field == "" {
		field = spec.Name
	}

	var b strings.Builder
	b.WriteString(string(opType))
	b.WriteByte(' ')
	b.WriteString(spec.Name)

	if len(spec.Args) > 0 {
		b.WriteByte('(')
		for i, arg := range spec.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%s: %s", arg.Name, arg.Type)
		}
		b.WriteByte(')')
	}

	b.WriteString(" {\n  ")
	b.WriteString(field)

	if len(spec.Args) > 0 {
		b.WriteByte('(')
		for i, arg := range spec.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: $%s", arg.Name, arg.Name)
		}
		b.WriteByte(')')
	}

	if len(spec.Selection) > 0 {
		b.WriteString(" {\n")
		for _, sel := range spec.Selection {
			b.WriteString("    ")
			b.WriteString(sel)
			b.WriteByte('\n')
		}
		b.WriteString("  }")
	}

	b.WriteString("\n}\n")

	doc := b.String()
	if err := Validate(doc); err != nil {
		return "", err
	}
	return doc, nil
}

// Validate parses a GraphQL document and rejects syntactically invalid ones.
// Validation is syntax-only; field existence is the upstream's concern and
// drives the fallback chain instead.
func Validate(doc string) error {
	_, err := parser.ParseQuery(&ast.Source{Input: doc})
	if err != nil {
		return errors.WrapInvalid(err, "querybuilder", "Validate", "parse document")
	}
	return nil
}
