package osdu

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360/osdugate/errors"
)

// graphqlError is a single entry of a GraphQL error envelope
type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// graphqlEnvelope is the standard GraphQL response wrapper
type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// classifyHTTPStatus maps an upstream HTTP status to a classified error.
// Nil means the body is worth parsing.
func classifyHTTPStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.WrapFatal(errors.ErrUnauthorized,
			"Client", "post", fmt.Sprintf("status %d", status))
	case status == http.StatusNotFound:
		return errors.WrapInvalid(errors.ErrServiceNotFound,
			"Client", "post", fmt.Sprintf("status %d", status))
	case status == http.StatusTooManyRequests:
		return errors.WrapTransient(errors.ErrRateLimited,
			"Client", "post", fmt.Sprintf("status %d", status))
	case status == http.StatusRequestTimeout || status >= 500:
		return errors.WrapTransient(errors.ErrServiceUnavailable,
			"Client", "post", fmt.Sprintf("status %d", status))
	default:
		return errors.WrapInvalid(errors.ErrUpstreamRejected,
			"Client", "post", fmt.Sprintf("status %d", status))
	}
}

// normalizeEnvelope decodes a GraphQL response body and surfaces envelope
// errors as classified Go errors. Partial responses (data plus errors) are
// treated as failures; OSDU facades do not return useful partials.
func normalizeEnvelope(body []byte) (json.RawMessage, error) {
	var env graphqlEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.WrapTransient(err, "Client", "normalizeEnvelope", "decode body")
	}

	if len(env.Errors) > 0 {
		return nil, classifyGraphQLErrors(env.Errors)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("empty data in response"),
			"Client", "normalizeEnvelope", "missing data")
	}

	return env.Data, nil
}

// classifyGraphQLErrors reduces envelope errors to one classified error.
// Validation-style errors (unknown fields, bad arguments) are invalid and
// drive the fallback chain; everything else is treated as a transient
// upstream condition.
func classifyGraphQLErrors(gqlErrors []graphqlError) error {
	messages := make([]string, 0, len(gqlErrors))
	invalid := false

	for _, ge := range gqlErrors {
		messages = append(messages, ge.Message)
		if isValidationError(ge) {
			invalid = true
		}
	}

	err := fmt.Errorf("graphql: %s", strings.Join(messages, "; "))
	if invalid {
		return errors.WrapInvalid(errors.ErrQueryRejected,
			"Client", "normalizeEnvelope", err.Error())
	}
	return errors.WrapTransient(err, "Client", "normalizeEnvelope", "upstream error")
}

func isValidationError(ge graphqlError) bool {
	switch ge.Extensions.Code {
	case "GRAPHQL_VALIDATION_FAILED", "BAD_USER_INPUT", "GRAPHQL_PARSE_FAILED":
		return true
	}

	msg := strings.ToLower(ge.Message)
	return strings.Contains(msg, "cannot query field") ||
		strings.Contains(msg, "unknown argument") ||
		strings.Contains(msg, "unknown type") ||
		strings.Contains(msg, "validation error") ||
		strings.Contains(msg, "syntax error")
}

// unwrapRoot extracts the value of the single root field of a data object.
// Fallback shapes use different root field names; callers decode the
// unwrapped value into the same DTO regardless of which shape answered.
func unwrapRoot(data json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "unwrapRoot", "decode data")
	}
	if len(fields) != 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("expected one root field, got %d", len(fields)),
			"Client", "unwrapRoot", "shape mismatch")
	}
	for _, v := range fields {
		return v, nil
	}
	return nil, errors.WrapInvalid(
		fmt.Errorf("no root field"),
		"Client", "unwrapRoot", "shape mismatch")
}
