package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// GetRecord fetches one Storage service record by id
func (c *Client) GetRecord(ctx context.Context, partition, id string) (*Record, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrRecordNotFound,
			"Client", "GetRecord", "empty id")
	}

	payload, err := c.executeTemplate(ctx, config.ServiceStorage, partition,
		querybuilder.OpGetRecord, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	if string(payload) == "null" {
		return nil, errors.WrapInvalid(errors.ErrRecordNotFound,
			"Client", "GetRecord", id)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "GetRecord", "decode record")
	}
	return &record, nil
}

// GetRecords fetches several records, preserving request order. Missing
// records are skipped rather than failing the batch.
func (c *Client) GetRecords(ctx context.Context, partition string, ids []string) ([]Record, error) {
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		record, err := c.GetRecord(ctx, partition, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

// GetRecordVersions lists the stored versions of a record
func (c *Client) GetRecordVersions(ctx context.Context, partition, id string) (*RecordVersions, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrRecordNotFound,
			"Client", "GetRecordVersions", "empty id")
	}

	payload, err := c.executeTemplate(ctx, config.ServiceStorage, partition,
		querybuilder.OpRecordVersions, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	var versions RecordVersions
	if err := json.Unmarshal(payload, &versions); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "GetRecordVersions", "decode versions")
	}
	return &versions, nil
}
