package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// ListSchemas lists Schema service entries matching the filter
func (c *Client) ListSchemas(ctx context.Context, partition string, filter SchemaFilter) ([]Schema, error) {
	variables := map[string]any{}
	if filter.Authority != "" {
		variables["authority"] = filter.Authority
	}
	if filter.Source != "" {
		variables["source"] = filter.Source
	}
	if filter.EntityType != "" {
		variables["entityType"] = filter.EntityType
	}
	if filter.Limit > 0 {
		variables["limit"] = filter.Limit
	}

	payload, err := c.executeTemplate(ctx, config.ServiceSchema, partition,
		querybuilder.OpListSchemas, variables)
	if err != nil {
		return nil, err
	}

	var schemas []Schema
	if err := json.Unmarshal(payload, &schemas); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "ListSchemas", "decode schemas")
	}
	for i := range schemas {
		schemas[i].normalize()
	}
	return schemas, nil
}

// GetSchema fetches one schema, including its JSON definition
func (c *Client) GetSchema(ctx context.Context, partition, id string) (*Schema, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrSchemaNotFound,
			"Client", "GetSchema", "empty id")
	}

	payload, err := c.executeTemplate(ctx, config.ServiceSchema, partition,
		querybuilder.OpGetSchema, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	if string(payload) == "null" {
		return nil, errors.WrapInvalid(errors.ErrSchemaNotFound,
			"Client", "GetSchema", id)
	}

	var schema Schema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "GetSchema", "decode schema")
	}
	schema.normalize()
	return &schema, nil
}
