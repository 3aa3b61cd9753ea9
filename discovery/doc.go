// Package discovery resolves logical service names to network addresses.
//
// A Resolver maps (service, version) to a ServiceAddress through a pluggable
// strategy: a static table (subpackage static), a router table (subpackage
// router), or a consul catalog (subpackage consul). CachingResolver wraps
// any strategy with a TTL cache and a last-known-good grace window so that
// discovery-backend blips do not cascade into caller failures.
package discovery
