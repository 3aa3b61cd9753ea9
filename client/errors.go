package client

import "fmt"

// UnregisteredServiceError means no contract was registered for the
// requested service and version. This is a programming error, not a
// dispatch outcome.
type UnregisteredServiceError struct {
	Service string
	Version string
}

// Error implements the error interface.
func (e *UnregisteredServiceError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("unregistered service %q", e.Service)
	}
	return fmt.Sprintf("unregistered service %q version %q", e.Service, e.Version)
}

// UnregisteredResourceError means the service contract has no resource
// with the requested name.
type UnregisteredResourceError struct {
	Service  string
	Resource string
}

// Error implements the error interface.
func (e *UnregisteredResourceError) Error() string {
	return fmt.Sprintf("service %q has no resource %q", e.Service, e.Resource)
}

// UnregisteredRouteError means the resource has no route with the
// requested name.
type UnregisteredRouteError struct {
	Service  string
	Resource string
	Route    string
}

// Error implements the error interface.
func (e *UnregisteredRouteError) Error() string {
	return fmt.Sprintf("resource %q of service %q has no route %q", e.Resource, e.Service, e.Route)
}

// MissingPathParamError means the route's path template references a
// parameter the caller did not supply.
type MissingPathParamError struct {
	Param string
	Path  string
}

// Error implements the error interface.
func (e *MissingPathParamError) Error() string {
	return fmt.Sprintf("missing path parameter %q for %q", e.Param, e.Path)
}
