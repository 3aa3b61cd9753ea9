package client

import (
	"context"
	"errors"

	"github.com/mardiros/aioli/discovery"
	"github.com/mardiros/aioli/logger"
	"github.com/mardiros/aioli/pipeline"
	"github.com/mardiros/aioli/transport"
)

// Dispatcher is the fixed innermost link of the chain. It resolves the
// destination address, invokes the transport, and converts every raw
// failure into a typed outcome. Nothing escapes it as an error.
type Dispatcher struct {
	resolver  discovery.Resolver
	transport transport.Transport
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher over a resolver and a transport.
func NewDispatcher(resolver discovery.Resolver, tr transport.Transport, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		resolver:  resolver,
		transport: tr,
		log:       log.WithComponent("dispatcher"),
	}
}

// Dispatch implements pipeline.Next as the chain terminal.
func (d *Dispatcher) Dispatch(ctx context.Context, req *pipeline.Request) pipeline.Outcome {
	addr, err := d.resolver.Resolve(ctx, req.Endpoint.Service, req.Endpoint.Version)
	if err != nil {
		d.log.WithError(err).Warn("resolution failed", logger.Fields(
			logger.FieldService, req.Endpoint.Service,
			logger.FieldVersion, req.Endpoint.Version,
			logger.FieldCorrelationID, req.CorrelationID,
		))
		return pipeline.ResolutionFailure(err)
	}

	resp, err := d.transport.Do(ctx, addr.URL(), req)
	if err != nil {
		d.log.WithError(err).Warn("transport failed", logger.Fields(
			logger.FieldEndpoint, req.Endpoint.String(),
			logger.FieldCorrelationID, req.CorrelationID,
		))
		var timeoutErr *transport.TimeoutError
		if errors.As(err, &timeoutErr) {
			return pipeline.Timeout(err)
		}
		return pipeline.TransportFailure(err)
	}

	d.log.Debug("dispatched", logger.Fields(
		logger.FieldEndpoint, req.Endpoint.String(),
		logger.FieldMethod, req.Method,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldCorrelationID, req.CorrelationID,
	))
	return pipeline.FromResponse(resp)
}
