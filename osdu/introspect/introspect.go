// Package introspect discovers the GraphQL schema of an OSDU service at
// runtime via the standard __schema introspection query. The walked result
// exposes query/mutation field lists, per-type scalar field lists for
// selection building, and type kind lookup. Results are cached per
// (service, partition) with a TTL, optionally shared across gateway
// replicas through NATS KV.
package introspect

import (
	"encoding/json"
	"time"

	"github.com/c360/osdugate/errors"
)

// introspectionQuery is the standard __schema document, trimmed to the
// parts the query builder consumes.
const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      name
      kind
      fields {
        name
        type {
          name
          kind
          ofType {
            name
            kind
            ofType {
              name
              kind
              ofType {
                name
                kind
              }
            }
          }
        }
      }
    }
  }
}
`

// TypeKind is a GraphQL __TypeKind value
type TypeKind string

// Kinds the walker distinguishes
const (
	KindObject    TypeKind = "OBJECT"
	KindScalar    TypeKind = "SCALAR"
	KindEnum      TypeKind = "ENUM"
	KindInterface TypeKind = "INTERFACE"
	KindUnion     TypeKind = "UNION"
	KindInput     TypeKind = "INPUT_OBJECT"
	KindList      TypeKind = "LIST"
	KindNonNull   TypeKind = "NON_NULL"
)

// Field is a named field with its unwrapped base type
type Field struct {
	Name     string   `json:"name"`
	TypeName string   `json:"typeName"`
	TypeKind TypeKind `json:"typeKind"`
}

// Type is one named type of the service schema
type Type struct {
	Name   string   `json:"name"`
	Kind   TypeKind `json:"kind"`
	Fields []Field  `json:"fields,omitempty"`
}

// Schema is the walked introspection result for one (service, partition)
type Schema struct {
	Service        string          `json:"service"`
	Partition      string          `json:"partition"`
	QueryFields    []Field         `json:"queryFields"`
	MutationFields []Field         `json:"mutationFields,omitempty"`
	Types          map[string]Type `json:"types"`
	FetchedAt      time.Time       `json:"fetchedAt"`
}

// HasQueryField reports whether the root query type exposes a field
func (s *Schema) HasQueryField(name string) bool {
	for _, f := range s.QueryFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// HasMutationField reports whether the root mutation type exposes a field
func (s *Schema) HasMutationField(name string) bool {
	for _, f := range s.MutationFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// TypeKind looks up the kind of a named type
func (s *Schema) TypeKind(name string) (TypeKind, bool) {
	t, ok := s.Types[name]
	if !ok {
		return "", false
	}
	return t.Kind, true
}

// ScalarFields returns the scalar and enum field names of a type, the leaf
// fields an ad-hoc selection can safely request.
func (s *Schema) ScalarFields(typeName string) ([]string, error) {
	t, ok := s.Types[typeName]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrTypeNotFound,
			"Schema", "ScalarFields", typeName)
	}

	fields := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.TypeKind == KindScalar || f.TypeKind == KindEnum {
			fields = append(fields, f.Name)
		}
	}
	return fields, nil
}

// FieldType resolves the base type of a field on a type
func (s *Schema) FieldType(typeName, fieldName string) (Field, error) {
	t, ok := s.Types[typeName]
	if !ok {
		return Field{}, errors.WrapInvalid(errors.ErrTypeNotFound,
			"Schema", "FieldType", typeName)
	}
	for _, f := range t.Fields {
		if f.Name == fieldName {
			return f, nil
		}
	}
	return Field{}, errors.WrapInvalid(errors.ErrFieldNotFound,
		"Schema", "FieldType", typeName+"."+fieldName)
}

// Stale reports whether the schema is older than the TTL
func (s *Schema) Stale(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.FetchedAt) > ttl
}

// Wire types for the introspection response

type rawTypeRef struct {
	Name   string      `json:"name"`
	Kind   TypeKind    `json:"kind"`
	OfType *rawTypeRef `json:"ofType"`
}

// base unwraps LIST and NON_NULL wrappers to the named type
func (r *rawTypeRef) base() *rawTypeRef {
	t := r
	for t.OfType != nil && (t.Kind == KindList || t.Kind == KindNonNull) {
		t = t.OfType
	}
	return t
}

type rawField struct {
	Name string     `json:"name"`
	Type rawTypeRef `json:"type"`
}

type rawType struct {
	Name   string     `json:"name"`
	Kind   TypeKind   `json:"kind"`
	Fields []rawField `json:"fields"`
}

type rawSchema struct {
	QueryType    *struct{ Name string } `json:"queryType"`
	MutationType *struct{ Name string } `json:"mutationType"`
	Types        []rawType              `json:"types"`
}

type introspectionData struct {
	Schema rawSchema `json:"__schema"`
}

// parseSchema walks an introspection data payload into a Schema
func parseSchema(service, partition string, data json.RawMessage, fetchedAt time.Time) (*Schema, error) {
	var payload introspectionData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.WrapInvalid(errors.ErrIntrospectionFailed,
			"introspect", "parseSchema", err.Error())
	}
	raw := payload.Schema
	if raw.QueryType == nil || len(raw.Types) == 0 {
		return nil, errors.WrapInvalid(errors.ErrIntrospectionFailed,
			"introspect", "parseSchema", "response has no query type")
	}

	schema := &Schema{
		Service:   service,
		Partition: partition,
		Types:     make(map[string]Type, len(raw.Types)),
		FetchedAt: fetchedAt,
	}

	for _, rt := range raw.Types {
		// Introspection meta types are not useful for query building
		if len(rt.Name) >= 2 && rt.Name[:2] == "__" {
			continue
		}

		t := Type{Name: rt.Name, Kind: rt.Kind}
		for _, rf := range rt.Fields {
			base := rf.Type.base()
			t.Fields = append(t.Fields, Field{
				Name:     rf.Name,
				TypeName: base.Name,
				TypeKind: base.Kind,
			})
		}
		schema.Types[rt.Name] = t
	}

	if qt, ok := schema.Types[raw.QueryType.Name]; ok {
		schema.QueryFields = qt.Fields
	}
	if raw.MutationType != nil {
		if mt, ok := schema.Types[raw.MutationType.Name]; ok {
			schema.MutationFields = mt.Fields
		}
	}

	if len(schema.QueryFields) == 0 {
		return nil, errors.WrapInvalid(errors.ErrIntrospectionFailed,
			"introspect", "parseSchema", "query type has no fields")
	}

	return schema, nil
}
