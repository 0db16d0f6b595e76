// Package tools defines the named operations remote clients can invoke and
// the registry that dispatches to them. Every handler follows one contract:
// validate arguments, invoke executor/pipeline operations, return a result
// record or a typed error.
package tools

import (
	"context"

	"github.com/google/uuid"
)

// Property describes a single argument for the tool's JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	// Items describes array element type (required for type="array").
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// Schema defines a tool's expected arguments.
type Schema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// HandlerFunc executes a tool with already schema-checked arguments.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is one named, remotely invocable operation.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Execute     HandlerFunc
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Request is one correlated tool invocation.
type Request struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewRequest creates a request with a fresh correlation id.
func NewRequest(name string, args map[string]any) Request {
	return Request{ID: uuid.NewString(), Name: name, Arguments: args}
}

// Response carries a result record or a typed error, correlated to a Request.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Err    error  `json:"-"`
}
