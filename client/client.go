package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/mardiros/aioli/pipeline"
)

// Params carries the per-call inputs of a typed operation.
type Params struct {
	// Path supplies values for the route's path template parameters.
	Path map[string]string

	// Query are URL query parameters.
	Query map[string]string

	// Headers are extra request headers.
	Headers map[string]string

	// Body is the encoded request body, nil when absent.
	Body []byte
}

// Client dispatches operations against one registered service contract.
// Clients are cheap and safe to share; all state lives on the factory.
type Client struct {
	factory  *Factory
	contract *ServiceContract
}

// Request dispatches the named route of the named resource through the
// middleware chain. Expected failures come back inside the Outcome; the
// returned error is non-nil only for contract violations (unknown resource
// or route, missing path parameter).
func (c *Client) Request(ctx context.Context, resource, route string, params Params) (pipeline.Outcome, error) {
	r, err := c.contract.route(resource, route)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	path, err := expandPath(r.Path, params.Path)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	req := &pipeline.Request{
		Method: r.Method,
		Path:   path,
		Query:  params.Query,
		Body:   params.Body,
		Endpoint: pipeline.Key{
			Service: c.contract.Service,
			Version: c.contract.Version,
			Route:   resource + "." + route,
		},
		CorrelationID: uuid.NewString(),
	}
	for name, value := range params.Headers {
		req.SetHeader(name, value)
	}

	return c.factory.dispatch(ctx, req), nil
}
