package osdu

import (
	"context"
	"encoding/json"

	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu/introspect"
	"github.com/c360/osdugate/osdu/querybuilder"
)

// ExecuteChain runs an operation's fallback shapes in order against a
// service, returning the data of the first shape that succeeds along with
// the name of that shape. Each shape gets the transport's full retry
// treatment before the chain advances. When every shape fails, the last
// error is wrapped as ErrFallbacksExhausted; an invalid error on the final
// shape stays invalid so callers fail fast instead of retrying the chain.
// With introspection wired via UseIntrospection, a shape derived from the
// discovered schema is tried once more before the chain fails invalid.
func (c *Client) ExecuteChain(ctx context.Context, service, partition string,
	op querybuilder.Operation, variables map[string]any) (json.RawMessage, string, error) {

	if len(op.Shapes) == 0 {
		return nil, "", errors.WrapInvalid(errors.ErrQueryInvalid,
			"Client", "ExecuteChain", "operation has no shapes")
	}

	var lastErr error
	for i, shape := range op.Shapes {
		if err := ctx.Err(); err != nil {
			return nil, "", errors.WrapTransient(err, "Client", "ExecuteChain", "cancelled")
		}

		data, err := c.Execute(ctx, service, partition, shape.Document, variables)
		if err == nil {
			if i > 0 {
				c.logger.Info("operation answered by fallback shape",
					"service", service, "operation", op.Name, "shape", shape.Name)
			}
			return data, shape.Name, nil
		}

		lastErr = err
		c.logger.Warn("query shape failed",
			"service", service, "operation", op.Name, "shape", shape.Name,
			"class", errors.Classify(err).String(), "error", err)

		if c.metrics != nil && i < len(op.Shapes)-1 {
			c.metrics.RecordFallback(service, op.Name)
		}

		// Authorization failures apply to every shape equally
		if errors.IsFatal(err) {
			return nil, "", err
		}
	}

	// Every hand-written shape was rejected for its shape, not its
	// transport. Derive one more from what the deployment's schema
	// actually exposes before giving up.
	if c.schemas != nil && errors.IsInvalid(lastErr) {
		data, shape, err := c.executeDiscovered(ctx, service, partition, op, variables)
		if err == nil {
			c.logger.Info("operation answered by discovered shape",
				"service", service, "operation", op.Name, "shape", shape)
			return data, shape, nil
		}
		c.logger.Warn("discovered shape failed",
			"service", service, "operation", op.Name, "error", err)
	}

	if errors.IsInvalid(lastErr) {
		return nil, "", lastErr
	}
	return nil, "", errors.WrapTransient(errors.ErrFallbacksExhausted,
		"Client", "ExecuteChain", lastErr.Error())
}

// executeDiscovered builds and runs a replacement shape from the
// introspected schema: the first template root field the deployment
// exposes, selecting that field's scalar leaves.
func (c *Client) executeDiscovered(ctx context.Context, service, partition string,
	op querybuilder.Operation, variables map[string]any) (json.RawMessage, string, error) {

	schema, err := c.schemas.Schema(ctx, service, partition)
	if err != nil {
		return nil, "", err
	}

	root, opType, err := discoveredRoot(schema, op)
	if err != nil {
		return nil, "", err
	}

	spec := querybuilder.Spec{
		Type:  opType,
		Name:  op.Name,
		Field: root.Name,
		Args:  suppliedArgs(op.Args, variables),
	}
	if root.TypeKind == introspect.KindObject || root.TypeKind == introspect.KindInterface {
		selection, err := schema.ScalarFields(root.TypeName)
		if err != nil {
			return nil, "", err
		}
		if len(selection) == 0 {
			return nil, "", errors.WrapInvalid(errors.ErrFieldNotFound,
				"Client", "executeDiscovered", root.TypeName+" has no leaf fields")
		}
		spec.Selection = selection
	}

	doc, err := querybuilder.Build(spec)
	if err != nil {
		return nil, "", err
	}

	data, err := c.Execute(ctx, service, partition, doc, variables)
	if err != nil {
		return nil, "", err
	}
	return data, "discovered:" + root.Name, nil
}

// discoveredRoot finds the first candidate root field the schema exposes.
// Shape names double as the root field names the templates query.
func discoveredRoot(schema *introspect.Schema, op querybuilder.Operation) (
	introspect.Field, querybuilder.OperationType, error) {

	candidates := make([]string, 0, len(op.Shapes)+1)
	for _, shape := range op.Shapes {
		candidates = append(candidates, shape.Name)
	}
	candidates = append(candidates, op.Name)

	for _, name := range candidates {
		for _, f := range schema.QueryFields {
			if f.Name == name {
				return f, querybuilder.Query, nil
			}
		}
		for _, f := range schema.MutationFields {
			if f.Name == name {
				return f, querybuilder.Mutation, nil
			}
		}
	}
	return introspect.Field{}, "", errors.WrapInvalid(errors.ErrFieldNotFound,
		"Client", "discoveredRoot", op.Name+" has no root field in the discovered schema")
}

// suppliedArgs keeps only declared arguments the caller actually passed,
// so the built document never references input types a deployment lacks.
func suppliedArgs(args []querybuilder.Argument, variables map[string]any) []querybuilder.Argument {
	if len(variables) == 0 {
		return nil
	}
	kept := make([]querybuilder.Argument, 0, len(args))
	for _, arg := range args {
		if _, ok := variables[arg.Name]; ok {
			kept = append(kept, arg)
		}
	}
	return kept
}

// executeTemplate resolves a template operation and runs its chain
func (c *Client) executeTemplate(ctx context.Context, service, partition, opName string,
	variables map[string]any) (json.RawMessage, error) {

	op, err := querybuilder.Lookup(service, opName)
	if err != nil {
		return nil, err
	}

	data, _, err := c.ExecuteChain(ctx, service, partition, op, variables)
	if err != nil {
		return nil, err
	}
	return unwrapRoot(data)
}
