// Package validate checks record payloads against JSON schemas served by
// the Schema service before they are displayed or written. Validation is
// shape checking only; the services own the data model.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu"
	"github.com/c360/osdugate/pkg/cache"
)

// SchemaFetcher fetches a schema by id. *osdu.Client satisfies this.
type SchemaFetcher interface {
	GetSchema(ctx context.Context, partition, id string) (*osdu.Schema, error)
}

// Result carries the outcome of one validation
type Result struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// Validator validates records against Schema service definitions. Compiled
// schemas are cached per (schema id, partition).
type Validator struct {
	fetcher  SchemaFetcher
	compiled cache.Cache[*gojsonschema.Schema]
}

// compiledSchemaLimit bounds the compiled schema cache. Published schema
// versions are immutable, so eviction is size-driven rather than
// time-driven.
const compiledSchemaLimit = 256

// NewValidator creates a validator backed by the given schema source
func NewValidator(fetcher SchemaFetcher) (*Validator, error) {
	if fetcher == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Validator", "NewValidator", "schema fetcher is required")
	}

	compiled, err := cache.NewLRU[*gojsonschema.Schema](compiledSchemaLimit)
	if err != nil {
		return nil, err
	}

	return &Validator{fetcher: fetcher, compiled: compiled}, nil
}

// ValidateRecord checks a record's data against the schema named by its
// kind. A record whose kind has no retrievable schema fails with
// ErrSchemaNotFound rather than passing silently.
func (v *Validator) ValidateRecord(ctx context.Context, partition string, record *osdu.Record) (*Result, error) {
	if record == nil || record.Kind == "" {
		return nil, errors.WrapInvalid(errors.ErrQueryInvalid,
			"Validator", "ValidateRecord", "record with kind is required")
	}
	return v.Validate(ctx, partition, record.Kind, record.Data)
}

// Validate checks a JSON document against the schema with the given id
func (v *Validator) Validate(ctx context.Context, partition, schemaID string,
	document json.RawMessage) (*Result, error) {

	if len(document) == 0 {
		return &Result{Valid: false, Issues: []string{"document is empty"}}, nil
	}

	schema, err := v.schemaFor(ctx, partition, schemaID)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Validator", "Validate", "run validation")
	}

	if result.Valid() {
		return &Result{Valid: true}, nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &Result{Valid: false, Issues: issues}, nil
}

func (v *Validator) schemaFor(ctx context.Context, partition, schemaID string) (*gojsonschema.Schema, error) {
	key := schemaID + "/" + partition
	if schema, ok := v.compiled.Get(key); ok {
		return schema, nil
	}

	entry, err := v.fetcher.GetSchema(ctx, partition, schemaID)
	if err != nil {
		return nil, err
	}
	if len(entry.Definition) == 0 {
		return nil, errors.WrapInvalid(errors.ErrSchemaNotFound,
			"Validator", "schemaFor", schemaID+" has no definition")
	}

	definition := normalizeDefinition(entry.Definition)

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definition))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Validator", "schemaFor", "compile "+schemaID)
	}

	_, _ = v.compiled.Set(key, schema)
	return schema, nil
}

// normalizeDefinition unwraps definitions the Schema service returns as a
// JSON-encoded string rather than an object.
func normalizeDefinition(definition json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(definition))
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return definition
	}
	var unquoted string
	if err := json.Unmarshal(definition, &unquoted); err != nil {
		return definition
	}
	return json.RawMessage(unquoted)
}
