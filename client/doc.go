// Package client is the top of the framework: contracts are registered on
// a Factory, which owns the resolver, the middleware chain, the breaker
// registry and the transport. A Client bound to one service contract
// dispatches typed operations and returns an Outcome for every expected
// failure mode; only contract violations surface as hard errors.
package client
