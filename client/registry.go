package client

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Route is one operation of a resource: an HTTP method and a path template
// with parameters in braces, e.g. "/users/{user_id}/email".
type Route struct {
	Method string
	Path   string
}

// Resource groups the named routes of one REST resource.
type Resource struct {
	Routes map[string]Route
}

// ServiceContract declares the resources of one versioned service. Version
// may be empty for unversioned services.
type ServiceContract struct {
	Service   string
	Version   string
	Resources map[string]Resource
}

func (c *ServiceContract) key() string {
	return contractKey(c.Service, c.Version)
}

func contractKey(service, version string) string {
	if version == "" {
		return service
	}
	return service + "/" + version
}

// Registry holds the registered service contracts. Registration happens at
// setup time; lookups are concurrent-safe.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*ServiceContract
}

// NewRegistry creates an empty contract registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]*ServiceContract)}
}

// Register adds a service contract. Registering the same service and
// version again merges resources; redeclaring an existing resource is a
// hard error, as are malformed routes.
func (r *Registry) Register(contract ServiceContract) error {
	if contract.Service == "" {
		return fmt.Errorf("contract has no service name")
	}
	if len(contract.Resources) == 0 {
		return fmt.Errorf("contract for %q declares no resources", contract.Service)
	}
	for resName, res := range contract.Resources {
		if len(res.Routes) == 0 {
			return fmt.Errorf("resource %q of %q declares no routes", resName, contract.Service)
		}
		for routeName, route := range res.Routes {
			if route.Method == "" {
				return fmt.Errorf("route %q of resource %q has no method", routeName, resName)
			}
			if !strings.HasPrefix(route.Path, "/") {
				return fmt.Errorf("route %q of resource %q: path %q must start with /", routeName, resName, route.Path)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.contracts[contract.key()]
	if !ok {
		copied := contract
		copied.Resources = make(map[string]Resource, len(contract.Resources))
		for name, res := range contract.Resources {
			copied.Resources[name] = res
		}
		r.contracts[contract.key()] = &copied
		return nil
	}
	for name, res := range contract.Resources {
		if _, dup := existing.Resources[name]; dup {
			return fmt.Errorf("resource %q already registered for %q", name, contract.key())
		}
		existing.Resources[name] = res
	}
	return nil
}

// Contract returns the contract for a service and version.
func (r *Registry) Contract(service, version string) (*ServiceContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contract, ok := r.contracts[contractKey(service, version)]
	if !ok {
		return nil, &UnregisteredServiceError{Service: service, Version: version}
	}
	return contract, nil
}

// route resolves a named route within the contract.
func (c *ServiceContract) route(resource, route string) (Route, error) {
	res, ok := c.Resources[resource]
	if !ok {
		return Route{}, &UnregisteredResourceError{Service: c.Service, Resource: resource}
	}
	r, ok := res.Routes[route]
	if !ok {
		return Route{}, &UnregisteredRouteError{Service: c.Service, Resource: resource, Route: route}
	}
	return r, nil
}

// expandPath substitutes {param} placeholders with escaped values. Every
// placeholder must be supplied; extra params are ignored.
func expandPath(template string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return "", fmt.Errorf("unbalanced brace in path template %q", template)
		}
		name := rest[open+1 : open+closing]
		value, ok := params[name]
		if !ok {
			return "", &MissingPathParamError{Param: name, Path: template}
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(value))
		rest = rest[open+closing+1:]
	}
}
