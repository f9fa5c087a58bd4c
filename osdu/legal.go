package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// ListLegalTags lists legal tags. When validOnly is true, expired and
// invalid tags are filtered by the service.
func (c *Client) ListLegalTags(ctx context.Context, partition string, validOnly bool) ([]LegalTag, error) {
	payload, err := c.executeTemplate(ctx, config.ServiceLegal, partition,
		querybuilder.OpListLegalTags, map[string]any{"valid": validOnly})
	if err != nil {
		return nil, err
	}

	var tags []LegalTag
	if err := json.Unmarshal(payload, &tags); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "ListLegalTags", "decode tags")
	}
	return tags, nil
}

// GetLegalTag fetches one legal tag by name
func (c *Client) GetLegalTag(ctx context.Context, partition, name string) (*LegalTag, error) {
	if name == "" {
		return nil, errors.WrapInvalid(errors.ErrRecordNotFound,
			"Client", "GetLegalTag", "empty name")
	}

	payload, err := c.executeTemplate(ctx, config.ServiceLegal, partition,
		querybuilder.OpGetLegalTag, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}

	if string(payload) == "null" {
		return nil, errors.WrapInvalid(errors.ErrRecordNotFound,
			"Client", "GetLegalTag", name)
	}

	var tag LegalTag
	if err := json.Unmarshal(payload, &tag); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "GetLegalTag", "decode tag")
	}
	return &tag, nil
}

// CreateLegalTag creates a legal tag and returns the created entry
func (c *Client) CreateLegalTag(ctx context.Context, partition string, tag LegalTag) (*LegalTag, error) {
	if tag.Name == "" {
		return nil, errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "CreateLegalTag", "tag name is required")
	}

	input := map[string]any{
		"name":        tag.Name,
		"description": tag.Description,
	}
	if tag.Properties != nil {
		props, err := json.Marshal(tag.Properties)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Client", "CreateLegalTag", "encode properties")
		}
		var propMap map[string]any
		if err := json.Unmarshal(props, &propMap); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "CreateLegalTag", "encode properties")
		}
		input["properties"] = propMap
	}

	payload, err := c.executeTemplate(ctx, config.ServiceLegal, partition,
		querybuilder.OpCreateLegalTag, map[string]any{"input": input})
	if err != nil {
		return nil, err
	}

	var created LegalTag
	if err := json.Unmarshal(payload, &created); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "CreateLegalTag", "decode tag")
	}
	return &created, nil
}

// ListCountryCodes lists the allowed country codes for legal tags
func (c *Client) ListCountryCodes(ctx context.Context, partition string) ([]CountryCode, error) {
	payload, err := c.executeTemplate(ctx, config.ServiceLegal, partition,
		querybuilder.OpListCountryCodes, nil)
	if err != nil {
		return nil, err
	}

	var codes []CountryCode
	if err := json.Unmarshal(payload, &codes); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "ListCountryCodes", "decode codes")
	}
	return codes, nil
}
