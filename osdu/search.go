package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// defaultSearchLimit bounds unpaginated searches
const defaultSearchLimit = 100

// Search runs a Search service query. Kind is required; the query string is
// passed through untouched (the service speaks its own Lucene-ish syntax).
// Pagination is cursor based: pass the cursor of the previous result to
// fetch the next page.
func (c *Client) Search(ctx context.Context, partition string, req SearchRequest) (*SearchResult, error) {
	if req.Kind == "" {
		return nil, errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "Search", "kind is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	variables := map[string]any{
		"kind":  req.Kind,
		"limit": limit,
	}
	if req.Query != "" {
		variables["query"] = req.Query
	}
	if req.Cursor != "" {
		variables["cursor"] = req.Cursor
	}
	if len(req.SpatialFilter) > 0 {
		var filter map[string]any
		if err := json.Unmarshal(req.SpatialFilter, &filter); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "Search", "decode spatial filter")
		}
		variables["spatialFilter"] = filter
	}

	payload, err := c.executeTemplate(ctx, config.ServiceSearch, partition,
		querybuilder.OpSearch, variables)
	if err != nil {
		return nil, err
	}

	var result SearchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "Search", "decode result")
	}
	if result.Results == nil {
		result.Results = []SearchHit{}
	}
	return &result, nil
}
